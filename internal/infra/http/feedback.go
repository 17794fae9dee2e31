package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"feedback-gateway/internal/domain"
	"feedback-gateway/internal/infra/metrics"
)

const maxFeedbackBody = 1 << 20

// FeedbackSubmitter превращает отзыв в задачу трекера.
type FeedbackSubmitter interface {
	Submit(ctx context.Context, req domain.FeedbackRequest) (domain.SubmitResult, error)
}

// FeedbackHandler принимает отзывы из мобильного приложения.
type FeedbackHandler struct {
	svc FeedbackSubmitter
	log zerolog.Logger
}

// NewFeedbackHandler создаёт обработчик.
func NewFeedbackHandler(svc FeedbackSubmitter, logger zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{svc: svc, log: logger}
}

// MountFeedback регистрирует обработчик на /api/feedback и на корне.
func MountFeedback(r chi.Router, svc FeedbackSubmitter, logger zerolog.Logger) {
	h := NewFeedbackHandler(svc, logger)
	r.With(CORS).Handle("/api/feedback", h)
	r.With(CORS).Handle("/", h)
}

type submitResponse struct {
	Success     bool   `json:"success"`
	IssueURL    string `json:"issueUrl"`
	IssueNumber int    `json:"issueNumber"`
	Message     string `json:"message"`
	Duplicate   bool   `json:"duplicate,omitempty"`
}

type missingParamsResponse struct {
	Error    string   `json:"error"`
	Required []string `json:"required"`
}

type messageResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type upstreamResponse struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func (h *FeedbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		metrics.IncSubmission("method_not_allowed")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req domain.FeedbackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody)).Decode(&req); err != nil {
		h.log.Debug().Err(err).Msg("feedback: тело запроса не разобрано")
		req = domain.FeedbackRequest{}
	}

	res, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.writeSubmitError(w, r, err)
		return
	}

	if res.Duplicate {
		metrics.IncSubmission("duplicate")
		writeJSON(w, http.StatusOK, submitResponse{
			Success:     true,
			IssueURL:    res.IssueURL,
			IssueNumber: res.IssueNumber,
			Message:     "Feedback already submitted",
			Duplicate:   true,
		})
		return
	}
	metrics.IncSubmission("created")
	writeJSON(w, http.StatusCreated, submitResponse{
		Success:     true,
		IssueURL:    res.IssueURL,
		IssueNumber: res.IssueNumber,
		Message:     "Feedback submitted successfully",
	})
}

func (h *FeedbackHandler) writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound *domain.RepoNotFoundError
		upstream *domain.UpstreamError
	)
	switch {
	case errors.Is(err, domain.ErrMissingParameters):
		metrics.IncSubmission("invalid")
		writeJSON(w, http.StatusBadRequest, missingParamsResponse{
			Error:    "Missing required parameters",
			Required: domain.RequiredFields,
		})
	case errors.Is(err, domain.ErrNotConfigured):
		metrics.IncSubmission("config_error")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
	case errors.As(err, &notFound):
		metrics.IncSubmission("repo_not_found")
		writeJSON(w, http.StatusBadRequest, messageResponse{
			Error:   "Repository not found",
			Message: notFound.Error(),
		})
	case errors.As(err, &upstream):
		metrics.IncSubmission("upstream_error")
		h.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Error creating GitHub issue")
		writeJSON(w, upstream.HTTPStatus(), upstreamResponse{
			Error:   "GitHub API error",
			Message: upstream.Message,
			Details: json.RawMessage(upstream.Details),
		})
	default:
		metrics.IncSubmission("internal_error")
		h.log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("Error creating GitHub issue")
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Error:   "Internal server error",
			Message: err.Error(),
		})
	}
}
