package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"feedback-gateway/internal/domain"
	"feedback-gateway/internal/infra/metrics"
)

const (
	// FeedbackLabel присваивается каждой задаче из отзыва.
	FeedbackLabel = "feedback"

	feedbackLabelColor       = "0052CC"
	feedbackLabelDescription = "User feedback from mobile app"
	versionLabelColor        = "28A745"

	dedupKeyPrefix = "dedup:"
)

// TrackerFactory создаёт клиента трекера для токена. Вызывается на каждый запрос.
type TrackerFactory func(token string) (domain.IssueTracker, error)

// Service принимает отзывы и превращает их в задачи трекера.
type Service struct {
	newTracker TrackerFactory
	token      string
	owner      string
	log        zerolog.Logger
	cache      domain.Cache
	dedupTTL   time.Duration
	notifier   domain.Notifier
}

// Option настраивает Service.
type Option func(*Service)

// WithDedup включает защиту от повторной отправки одинаковых отзывов.
func WithDedup(cache domain.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.dedupTTL = ttl
	}
}

// WithNotifier включает уведомления о созданных задачах.
func WithNotifier(n domain.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// NewService создаёт сервис. owner задаёт владельца всех целевых репозиториев.
func NewService(newTracker TrackerFactory, token, owner string, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{newTracker: newTracker, token: token, owner: owner, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate проверяет, что все поля запроса заполнены.
func Validate(req domain.FeedbackRequest) error {
	if req.AppName == "" || req.Title == "" || req.Body == "" || req.Version == "" {
		return domain.ErrMissingParameters
	}
	return nil
}

// ComposeBody добавляет к тексту отзыва подпись с приложением и версией.
func ComposeBody(req domain.FeedbackRequest) string {
	return fmt.Sprintf("%s\n\n---\n**App:** %s\n**Version:** %s", req.Body, req.AppName, req.Version)
}

// LabelFor возвращает описание метки по её имени.
func LabelFor(name string) domain.Label {
	if name == FeedbackLabel {
		return domain.Label{Name: name, Color: feedbackLabelColor, Description: feedbackLabelDescription}
	}
	return domain.Label{Name: name, Color: versionLabelColor, Description: "Version " + name}
}

// RequiredLabels возвращает метки задачи: feedback и версия.
func RequiredLabels(version string) []string {
	return []string{FeedbackLabel, version}
}

// Fingerprint вычисляет отпечаток отзыва для поиска повторов.
func Fingerprint(req domain.FeedbackRequest) string {
	h := sha256.New()
	for _, part := range []string{req.AppName, req.Version, req.Title, req.Body} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Submit создаёт задачу из отзыва.
func (s *Service) Submit(ctx context.Context, req domain.FeedbackRequest) (domain.SubmitResult, error) {
	if err := Validate(req); err != nil {
		return domain.SubmitResult{}, err
	}
	if s.token == "" {
		s.log.Error().Msg("GITHUB_TOKEN environment variable is not set")
		return domain.SubmitResult{}, domain.ErrNotConfigured
	}

	logger := s.log.With().
		Str("submission_id", uuid.NewString()).
		Str("owner", s.owner).
		Str("repo", req.AppName).
		Str("version", req.Version).
		Logger()

	var fingerprint string
	if s.dedupEnabled() {
		fingerprint = Fingerprint(req)
		if issue, ok := s.lookupDuplicate(ctx, fingerprint, logger); ok {
			logger.Info().Int("issue", issue.Number).Msg("feedback: повторная отправка, задача уже существует")
			return domain.SubmitResult{IssueURL: issue.URL, IssueNumber: issue.Number, Duplicate: true}, nil
		}
	}

	tracker, err := s.newTracker(s.token)
	if err != nil {
		return domain.SubmitResult{}, fmt.Errorf("создание клиента трекера: %w", err)
	}

	exists, err := tracker.RepositoryExists(ctx, s.owner, req.AppName)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	if !exists {
		return domain.SubmitResult{}, &domain.RepoNotFoundError{Owner: s.owner, Repo: req.AppName}
	}

	labels := RequiredLabels(req.Version)
	s.ensureLabels(ctx, tracker, req.AppName, labels, logger)

	issue, err := tracker.CreateIssue(ctx, s.owner, req.AppName, domain.NewIssue{
		Title:  req.Title,
		Body:   ComposeBody(req),
		Labels: labels,
	})
	if err != nil {
		return domain.SubmitResult{}, err
	}
	logger.Info().Int("issue", issue.Number).Str("url", issue.URL).Msg("feedback: задача создана")

	if fingerprint != "" {
		s.rememberIssue(ctx, fingerprint, issue, logger)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyIssueCreated(ctx, req, issue); err != nil {
			logger.Warn().Err(err).Msg("feedback: не удалось отправить уведомление")
		}
	}

	return domain.SubmitResult{IssueURL: issue.URL, IssueNumber: issue.Number}, nil
}

// ensureLabels создаёт отсутствующие метки. Ошибки не прерывают отправку отзыва.
func (s *Service) ensureLabels(ctx context.Context, tracker domain.IssueTracker, repo string, names []string, logger zerolog.Logger) {
	for _, name := range names {
		_, err := tracker.GetLabel(ctx, s.owner, repo, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			metrics.IncLabelError("get")
			logger.Error().Err(err).Str("label", name).Msg("Error checking label")
			continue
		}

		if _, err := tracker.CreateLabel(ctx, s.owner, repo, LabelFor(name)); err != nil {
			metrics.IncLabelError("create")
			logger.Error().Err(err).Str("label", name).Msg("Failed to create label")
			continue
		}
		metrics.IncLabelCreated()
		logger.Info().Str("label", name).Msg("Created label")
	}
}

func (s *Service) dedupEnabled() bool {
	return s.cache != nil && s.dedupTTL > 0
}

type issueRef struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

func (s *Service) lookupDuplicate(ctx context.Context, fingerprint string, logger zerolog.Logger) (domain.Issue, bool) {
	raw, err := s.cache.Get(ctx, dedupKeyPrefix+fingerprint)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("feedback: ошибка чтения кэша повторов")
		}
		return domain.Issue{}, false
	}
	var ref issueRef
	if err := json.Unmarshal(raw, &ref); err != nil || ref.URL == "" {
		logger.Warn().Err(err).Msg("feedback: повреждённая запись кэша повторов")
		return domain.Issue{}, false
	}
	return domain.Issue{Number: ref.Number, URL: ref.URL}, true
}

func (s *Service) rememberIssue(ctx context.Context, fingerprint string, issue domain.Issue, logger zerolog.Logger) {
	raw, err := json.Marshal(issueRef{Number: issue.Number, URL: issue.URL})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, dedupKeyPrefix+fingerprint, raw, s.dedupTTL); err != nil {
		logger.Warn().Err(err).Msg("feedback: не удалось сохранить отпечаток отзыва")
	}
}
