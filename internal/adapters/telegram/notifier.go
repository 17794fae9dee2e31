package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"feedback-gateway/internal/domain"
	"feedback-gateway/internal/infra/metrics"
)

// Sender отправляет сообщения. Реализуется *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier пишет о новых задачах в служебный чат.
type Notifier struct {
	bot    Sender
	chatID int64
	log    zerolog.Logger
}

// NewNotifier создаёт уведомитель для чата chatID.
func NewNotifier(bot Sender, chatID int64, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, log: log}
}

// NotifyIssueCreated отправляет описание задачи, разбивая длинный текст на части.
func (n *Notifier) NotifyIssueCreated(ctx context.Context, req domain.FeedbackRequest, issue domain.Issue) error {
	for i, part := range SplitMessage(FormatIssueNotification(req, issue)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(n.chatID, part)
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", "api.telegram.org", start, err)
		if err != nil {
			return fmt.Errorf("send notification part %d: %w", i+1, err)
		}
	}
	n.log.Debug().Int("issue", issue.Number).Int64("chat_id", n.chatID).Msg("telegram: уведомление отправлено")
	return nil
}

// FormatIssueNotification собирает текст уведомления.
func FormatIssueNotification(req domain.FeedbackRequest, issue domain.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New feedback for %s %s: %s\n", req.AppName, req.Version, req.Title)
	fmt.Fprintf(&b, "%s\n\n", issue.URL)
	b.WriteString(req.Body)
	return b.String()
}

var _ domain.Notifier = (*Notifier)(nil)
