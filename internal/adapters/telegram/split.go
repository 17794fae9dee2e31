package telegram

import "strings"

const messageLimit = 4096

// SplitMessage разбивает текст на части не длиннее лимита сообщения Telegram.
func SplitMessage(text string) []string {
	return splitByLimit(text, messageLimit)
}

// splitByLimit режет текст по границе абзаца, затем строки, затем слова.
// Граница учитывается, только если она во второй половине окна; иначе
// текст режется ровно по лимиту в рунах.
func splitByLimit(text string, limit int) []string {
	rest := []rune(strings.TrimSpace(text))
	if len(rest) == 0 {
		return nil
	}

	var parts []string
	for len(rest) > limit {
		cut := lastBoundary(rest[:limit])
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.TrimSpace(string(rest[:cut])); chunk != "" {
			parts = append(parts, chunk)
		}
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \n"))
	}
	if chunk := strings.TrimSpace(string(rest)); chunk != "" {
		parts = append(parts, chunk)
	}
	return parts
}

func lastBoundary(window []rune) int {
	s := string(window)
	for _, sep := range []string{"\n\n", "\n", " "} {
		i := strings.LastIndex(s, sep)
		if i <= 0 {
			continue
		}
		if cut := len([]rune(s[:i])); cut > len(window)/2 {
			return cut
		}
	}
	return -1
}
