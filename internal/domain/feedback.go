package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// FeedbackRequest описывает отзыв, пришедший из мобильного приложения.
type FeedbackRequest struct {
	AppName string `json:"appName"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Version string `json:"version"`
}

// RequiredFields перечисляет обязательные поля запроса в порядке их объявления.
var RequiredFields = []string{"appName", "title", "body", "version"}

// Label описывает метку задачи в трекере.
type Label struct {
	Name        string
	Color       string
	Description string
}

// NewIssue содержит поля создаваемой задачи.
type NewIssue struct {
	Title  string
	Body   string
	Labels []string
}

// Issue описывает созданную задачу.
type Issue struct {
	Number int
	URL    string
	Title  string
}

// SubmitResult возвращается после обработки отзыва.
type SubmitResult struct {
	IssueURL    string
	IssueNumber int
	Duplicate   bool
}

var (
	// ErrMissingParameters возвращается, если хотя бы одно поле запроса пустое.
	ErrMissingParameters = errors.New("missing required parameters")
	// ErrNotConfigured означает, что у процесса нет токена трекера.
	ErrNotConfigured = errors.New("issue tracker token is not configured")
	// ErrNotFound сопоставляется с ответом 404 от трекера.
	ErrNotFound = errors.New("not found")
	// ErrCacheMiss возвращается кэшем при отсутствии ключа.
	ErrCacheMiss = errors.New("cache miss")
)

// RepoNotFoundError возвращается, если целевой репозиторий не существует.
type RepoNotFoundError struct {
	Owner string
	Repo  string
}

func (e *RepoNotFoundError) Error() string {
	return fmt.Sprintf("Repository %s/%s does not exist", e.Owner, e.Repo)
}

// UpstreamError описывает ошибку, полученную от API трекера.
type UpstreamError struct {
	Status  int
	Message string
	// Details хранит исходное тело ответа в JSON, если оно доступно.
	Details []byte
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github api error: status=%d message=%s", e.Status, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять 404 через errors.Is(err, ErrNotFound).
func (e *UpstreamError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// HTTPStatus возвращает код ответа трекера, по умолчанию 500.
func (e *UpstreamError) HTTPStatus() int {
	if e.Status < 400 || e.Status > 599 {
		return http.StatusInternalServerError
	}
	return e.Status
}
