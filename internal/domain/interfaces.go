package domain

import (
	"context"
	"time"
)

// IssueTracker выполняет операции над репозиториями, метками и задачами.
type IssueTracker interface {
	RepositoryExists(ctx context.Context, owner, repo string) (bool, error)
	GetLabel(ctx context.Context, owner, repo, name string) (Label, error)
	CreateLabel(ctx context.Context, owner, repo string, label Label) (Label, error)
	CreateIssue(ctx context.Context, owner, repo string, issue NewIssue) (Issue, error)
}

// Notifier сообщает о новых задачах во внешний канал.
type Notifier interface {
	NotifyIssueCreated(ctx context.Context, req FeedbackRequest, issue Issue) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
