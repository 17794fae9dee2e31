package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"

	"feedback-gateway/internal/domain"
	"feedback-gateway/internal/infra/metrics"
)

const component = "github"

// Client реализует domain.IssueTracker поверх GitHub REST API.
type Client struct {
	api        *gh.Client
	httpClient *http.Client
	baseURL    string
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP-клиент, через который идут запросы.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout задаёт таймаут одного запроса к API.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithBaseURL переопределяет адрес API, например для GitHub Enterprise.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// New создаёт клиента, авторизованного токеном.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	client := &Client{httpClient: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(client)
	}
	api := gh.NewClient(client.httpClient).WithAuthToken(token)
	if client.baseURL != "" {
		parsed, err := url.Parse(client.baseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if !strings.HasSuffix(parsed.Path, "/") {
			parsed.Path += "/"
		}
		api.BaseURL = parsed
	}
	client.api = api
	return client, nil
}

// RepositoryExists проверяет наличие репозитория. 404 не считается ошибкой.
func (c *Client) RepositoryExists(ctx context.Context, owner, repo string) (bool, error) {
	start := time.Now()
	_, _, err := c.api.Repositories.Get(ctx, segment(owner), segment(repo))
	err = translateError(err)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.ObserveNetworkRequest(component, "get_repository", c.target(), start, nil)
		return false, nil
	}
	metrics.ObserveNetworkRequest(component, "get_repository", c.target(), start, err)
	if err != nil {
		return false, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}
	return true, nil
}

// GetLabel возвращает метку по имени. Отсутствие метки даёт ошибку, совместимую с domain.ErrNotFound.
func (c *Client) GetLabel(ctx context.Context, owner, repo, name string) (domain.Label, error) {
	start := time.Now()
	label, _, err := c.api.Issues.GetLabel(ctx, segment(owner), segment(repo), segment(name))
	err = translateError(err)
	metrics.ObserveNetworkRequest(component, "get_label", c.target(), start, err)
	if err != nil {
		return domain.Label{}, fmt.Errorf("get label %q in %s/%s: %w", name, owner, repo, err)
	}
	return toDomainLabel(label), nil
}

// CreateLabel создаёт метку в репозитории.
func (c *Client) CreateLabel(ctx context.Context, owner, repo string, label domain.Label) (domain.Label, error) {
	start := time.Now()
	created, _, err := c.api.Issues.CreateLabel(ctx, segment(owner), segment(repo), &gh.Label{
		Name:        gh.Ptr(label.Name),
		Color:       gh.Ptr(label.Color),
		Description: gh.Ptr(label.Description),
	})
	err = translateError(err)
	metrics.ObserveNetworkRequest(component, "create_label", c.target(), start, err)
	if err != nil {
		return domain.Label{}, fmt.Errorf("create label %q in %s/%s: %w", label.Name, owner, repo, err)
	}
	return toDomainLabel(created), nil
}

// CreateIssue создаёт задачу.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, issue domain.NewIssue) (domain.Issue, error) {
	labels := append([]string(nil), issue.Labels...)
	start := time.Now()
	created, _, err := c.api.Issues.Create(ctx, segment(owner), segment(repo), &gh.IssueRequest{
		Title:  gh.Ptr(issue.Title),
		Body:   gh.Ptr(issue.Body),
		Labels: &labels,
	})
	err = translateError(err)
	metrics.ObserveNetworkRequest(component, "create_issue", c.target(), start, err)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("create issue in %s/%s: %w", owner, repo, err)
	}
	return domain.Issue{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
		Title:  created.GetTitle(),
	}, nil
}

// segment экранирует значение как один сегмент пути, включая "." и "..".
// go-github подставляет аргументы в путь без экранирования.
func segment(s string) string {
	if strings.Trim(s, ".") == "" {
		return strings.ReplaceAll(s, ".", "%2E")
	}
	return url.PathEscape(s)
}

func (c *Client) target() string {
	if c.api.BaseURL == nil {
		return ""
	}
	return c.api.BaseURL.Host
}

func toDomainLabel(label *gh.Label) domain.Label {
	return domain.Label{
		Name:        label.GetName(),
		Color:       label.GetColor(),
		Description: label.GetDescription(),
	}
}

// translateError приводит ошибки go-github к domain.UpstreamError.
// Отмена контекста возвращается без изменений.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	upstream := &domain.UpstreamError{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	var (
		rateErr  *gh.RateLimitError
		abuseErr *gh.AbuseRateLimitError
		errResp  *gh.ErrorResponse
	)
	switch {
	case errors.As(err, &rateErr):
		upstream.Status = statusOf(rateErr.Response)
		upstream.Message = rateErr.Message
		upstream.Details = payloadOr(rateErr.Response, rateErr.Message, "", nil)
	case errors.As(err, &abuseErr):
		upstream.Status = statusOf(abuseErr.Response)
		upstream.Message = abuseErr.Message
		upstream.Details = payloadOr(abuseErr.Response, abuseErr.Message, "", nil)
	case errors.As(err, &errResp):
		upstream.Status = statusOf(errResp.Response)
		upstream.Message = errResp.Message
		upstream.Details = payloadOr(errResp.Response, errResp.Message, errResp.DocumentationURL, errResp.Errors)
	}
	return upstream
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return http.StatusInternalServerError
	}
	return resp.StatusCode
}

// payloadOr возвращает тело ответа GitHub, если это JSON, иначе собирает
// details из разобранных полей ошибки.
func payloadOr(resp *http.Response, message, documentationURL string, fieldErrors []gh.Error) []byte {
	if raw := rawPayload(resp); raw != nil {
		return raw
	}
	return details(message, documentationURL, fieldErrors)
}

// rawPayload читает тело ответа, которое go-github восстанавливает в CheckResponse.
func rawPayload(resp *http.Response) []byte {
	if resp == nil || resp.Body == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return nil
	}
	return data
}

func details(message, documentationURL string, fieldErrors []gh.Error) []byte {
	payload := map[string]any{"message": message}
	if documentationURL != "" {
		payload["documentation_url"] = documentationURL
	}
	if len(fieldErrors) > 0 {
		payload["errors"] = fieldErrors
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}

var _ domain.IssueTracker = (*Client)(nil)
