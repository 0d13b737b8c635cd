package performancehandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"perfreview/internal/domain/performance"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/platform/mq"
	"perfreview/internal/requestctx"
	"perfreview/internal/transport/http/api"
	"perfreview/internal/transport/http/middleware"
	"perfreview/internal/transport/http/shared"
)

const (
	// MessageIDHeader lets producers choose the queue message id so retried
	// publishes are recognised as duplicates.
	MessageIDHeader = "X-Message-ID"

	// ProducerIDHeader identifies a submitting system. It keys the rate limit only
	// when proxy headers are trusted.
	ProducerIDHeader = "X-Producer-ID"
)

type Publisher interface {
	Publish(ctx context.Context, payload []byte) (mq.Message, error)
	PublishWithID(ctx context.Context, id string, payload []byte) (mq.Message, error)
}

type Handler struct {
	Service *performance.Service
	Queue   Publisher
	Metrics *metrics.Collector
}

func NewHandler(service *performance.Service, queue Publisher, collector *metrics.Collector) *Handler {
	return &Handler{Service: service, Queue: queue, Metrics: collector}
}

// RegisterRoutes mounts the read endpoints. Submission endpoints are registered
// separately so callers can wrap them with write-only middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/employees/{employeeID}/performance", h.handleEmployeeReport)
	r.Get("/employees/{employeeID}/performance.pdf", h.handleEmployeeReportPDF)
	r.Get("/employees/{employeeID}/peer-comparison", h.handlePeerComparison)
	r.Get("/departments/{departmentID}/performance-summary", h.handleDepartmentSummary)
}

func (h *Handler) RegisterSubmissionRoutes(r chi.Router) {
	r.Post("/reviews", h.handleSubmitReview)
	r.Post("/review-messages", h.handlePublishReviewMessage)
}

func (h *Handler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var payload performance.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		failDecode(w, r, err)
		return
	}

	resp, err := h.Service.SubmitReview(r.Context(), payload)
	if err != nil {
		h.fail(w, r, err, "review_submit_failed", "failed to submit review")
		return
	}
	h.Metrics.ReviewSubmitted(metrics.SourceHTTP)
	api.Created(w, resp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePublishReviewMessage(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	if h.Queue == nil {
		api.Fail(w, http.StatusServiceUnavailable, "queue_unavailable", "review queue is not running", requestID)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		failDecode(w, r, err)
		return
	}
	v := shared.NewValidator()
	if len(strings.TrimSpace(string(body))) == 0 {
		v.Add("body", "must not be empty")
	} else if !json.Valid(body) {
		v.Add("body", "must be valid JSON")
	}
	if v.Reject(w, requestID) {
		return
	}

	var msg mq.Message
	if id := strings.TrimSpace(r.Header.Get(MessageIDHeader)); id != "" {
		msg, err = h.Queue.PublishWithID(r.Context(), id, body)
	} else {
		msg, err = h.Queue.Publish(r.Context(), body)
	}
	if err != nil {
		if errors.Is(err, mq.ErrQueueFull) || errors.Is(err, mq.ErrQueueClosed) {
			requestctx.Logger(r.Context(), nil).Warn("review message rejected", "err", err)
			api.Fail(w, http.StatusServiceUnavailable, "queue_unavailable", err.Error(), requestID)
			return
		}
		h.fail(w, r, err, "review_publish_failed", "failed to enqueue review message")
		return
	}
	api.Accepted(w, map[string]string{"messageId": msg.ID}, requestID)
}

func (h *Handler) handleEmployeeReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.EmployeeReport(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, r, err, "report_failed", "failed to build performance report")
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeReportPDF(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")
	report, err := h.Service.EmployeeReport(r.Context(), employeeID)
	if err != nil {
		h.fail(w, r, err, "report_failed", "failed to build performance report")
		return
	}
	pdfBytes, err := performance.RenderReportPDF(report)
	if err != nil {
		h.fail(w, r, err, "report_render_failed", "failed to render performance report")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "performance-"+employeeID+".pdf"))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdfBytes); err != nil {
		slog.Warn("write pdf failed", "err", err)
	}
}

func (h *Handler) handlePeerComparison(w http.ResponseWriter, r *http.Request) {
	comparison, err := h.Service.PeerComparison(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		h.fail(w, r, err, "peer_comparison_failed", "failed to compare with peers")
		return
	}
	api.Success(w, comparison, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDepartmentSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.DepartmentSummary(r.Context(), chi.URLParam(r, "departmentID"))
	if err != nil {
		h.fail(w, r, err, "department_summary_failed", "failed to summarise department")
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

// fail maps domain errors onto the envelope. Anything that is neither a validation
// nor a not-found error is a store failure and is logged, not echoed.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())

	if v, ok := shared.FromError(err); ok {
		v.Reject(w, requestID)
		return
	}
	switch {
	case errors.Is(err, performance.ErrValidation):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, performance.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	default:
		requestctx.Logger(r.Context(), nil).Error(strings.ReplaceAll(code, "_", " "), "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func failDecode(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		return
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
}
