package performancehandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"perfreview/internal/domain/performance"
	"perfreview/internal/platform/memstore"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/platform/mq"
	performancehandler "perfreview/internal/transport/http/handlers/performance"
	"perfreview/internal/transport/http/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			Fields []struct {
				Field  string `json:"field"`
				Reason string `json:"reason"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

type fixture struct {
	router http.Handler
	store  *memstore.Store
	queue  *mq.InMemoryQueue
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.New()
	queue := mq.NewInMemoryQueue(mq.WithCapacity(2))
	t.Cleanup(func() { _ = queue.Close() })

	now := func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }
	service := performance.NewService(store, performance.WithClock(now))
	handler := performancehandler.NewHandler(service, queue, metrics.New())

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	handler.RegisterRoutes(router)
	handler.RegisterSubmissionRoutes(router)
	return fixture{router: router, store: store, queue: queue}
}

func (f fixture) do(t *testing.T, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
		}
	}
	return rec, env
}

func submission(employeeID, department, role, date string, goal, skill, team float64) string {
	payload, _ := json.Marshal(map[string]any{
		"employeeId": employeeID,
		"reviewerId": "mgr-1",
		"department": department,
		"role":       role,
		"reviewDate": date,
		"metrics": map[string]float64{
			"goalAchievement": goal,
			"skillLevel":      skill,
			"teamwork":        team,
		},
		"employeeInfo": map[string]string{"departmentId": department, "role": role},
	})
	return string(payload)
}

func TestSubmitReviewCreatesReview(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 85, 90, 95))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp performance.SubmissionResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ReviewID == "" || resp.Status != performance.SubmissionStatusSubmitted {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, _ := f.store.ListReviewsByEmployee(context.Background(), "emp-1")
	if len(stored) != 1 || stored[0].OverallScore != 89.5 {
		t.Fatalf("expected one stored review scoring 89.5, got %+v", stored)
	}
}

func TestSubmitReviewValidationErrors(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 101, 90, -1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
	fields := map[string]bool{}
	for _, issue := range env.Error.Details.Fields {
		fields[issue.Field] = true
	}
	if !fields["metrics.goalAchievement"] || !fields["metrics.teamwork"] || fields["metrics.skillLevel"] {
		t.Fatalf("unexpected field issues %+v", env.Error.Details.Fields)
	}

	stored, _ := f.store.ListReviewsByEmployee(context.Background(), "emp-1")
	if len(stored) != 0 {
		t.Fatalf("rejected review must not be stored, got %d", len(stored))
	}
}

func TestSubmitReviewMalformedJSON(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/reviews", `{"employeeId":`)
	if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "invalid_payload" {
		t.Fatalf("expected 400 invalid_payload, got %d %+v", rec.Code, env.Error)
	}
}

func TestEmployeeReport(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-01-10", 70, 70, 70))
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 90, 90, 90))

	rec, env := f.do(t, http.MethodGet, "/employees/emp-1/performance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report performance.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.AverageScore != 80 || report.Trends.LastQuarter != 90 || report.Trends.LastYear != 80 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Reviews) != 2 || report.Reviews[0].ReviewDate != "2026-09-01" {
		t.Fatalf("expected newest review first, got %+v", report.Reviews)
	}
}

func TestEmployeeReportNotFound(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodGet, "/employees/ghost/performance", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %+v", rec.Code, env.Error)
	}
}

func TestEmployeeReportPDF(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 90, 90, 90))

	rec, _ := f.do(t, http.MethodGet, "/employees/emp-1/performance.pdf", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("expected a PDF document")
	}
}

func TestPeerComparison(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 80, 80, 80))
	f.do(t, http.MethodPost, "/reviews", submission("emp-2", "eng", "dev", "2026-09-01", 70, 70, 70))
	f.do(t, http.MethodPost, "/reviews", submission("emp-3", "eng", "dev", "2026-09-01", 90, 90, 90))
	f.do(t, http.MethodPost, "/reviews", submission("emp-4", "eng", "qa", "2026-09-01", 10, 10, 10))

	rec, env := f.do(t, http.MethodGet, "/employees/emp-1/peer-comparison", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var comparison performance.PeerComparison
	if err := json.Unmarshal(env.Data, &comparison); err != nil {
		t.Fatalf("decode comparison: %v", err)
	}
	if comparison.PercentileRank != 50 || comparison.PeerAverageScore != 80 || comparison.Role != "dev" {
		t.Fatalf("unexpected comparison %+v", comparison)
	}
}

func TestDepartmentSummary(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 60, 60, 60))
	f.do(t, http.MethodPost, "/reviews", submission("emp-2", "eng", "dev", "2026-09-01", 90, 90, 90))
	f.do(t, http.MethodPost, "/reviews", submission("emp-3", "eng", "lead", "2026-09-01", 75, 75, 75))

	rec, env := f.do(t, http.MethodGet, "/departments/eng/performance-summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var summary performance.DepartmentSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.AverageScore != 75 || len(summary.TopPerformers) != 2 || len(summary.LowPerformers) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.TopPerformers[0].EmployeeID != "emp-2" || summary.TopPerformers[0].Rank == nil || *summary.TopPerformers[0].Rank != 1 {
		t.Fatalf("unexpected top performer %+v", summary.TopPerformers[0])
	}
	if summary.LowPerformers[0].EmployeeID != "emp-1" || summary.LowPerformers[0].Rank != nil {
		t.Fatalf("unexpected low performer %+v", summary.LowPerformers[0])
	}

	rec, _ = f.do(t, http.MethodGet, "/departments/sales/performance-summary", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an empty department, got %d", rec.Code)
	}
}

func TestSameDateReviewsAgreeOnRole(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "dev", "2026-09-01", 80, 80, 80))
	f.do(t, http.MethodPost, "/reviews", submission("emp-1", "eng", "lead", "2026-09-01", 90, 90, 90))

	_, env := f.do(t, http.MethodGet, "/employees/emp-1/peer-comparison", "")
	var comparison performance.PeerComparison
	if err := json.Unmarshal(env.Data, &comparison); err != nil {
		t.Fatalf("decode comparison: %v", err)
	}

	_, env = f.do(t, http.MethodGet, "/departments/eng/performance-summary", "")
	var summary performance.DepartmentSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if len(summary.TopPerformers) != 1 {
		t.Fatalf("expected one ranked employee, got %+v", summary.TopPerformers)
	}

	if comparison.Role != "lead" || summary.TopPerformers[0].Role != "lead" {
		t.Fatalf("expected both views to use the last same-date role, got comparison %q summary %q",
			comparison.Role, summary.TopPerformers[0].Role)
	}
}

func TestPublishReviewMessage(t *testing.T) {
	f := newFixture(t)

	rec, env := f.do(t, http.MethodPost, "/review-messages", submission("emp-1", "eng", "dev", "2026-09-01", 80, 80, 80),
		performancehandler.MessageIDHeader, "msg-1")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data["messageId"] != "msg-1" {
		t.Fatalf("expected producer message id, got %q", data["messageId"])
	}
	if f.queue.Len() != 1 {
		t.Fatalf("expected one queued message, got %d", f.queue.Len())
	}

	rec, env = f.do(t, http.MethodPost, "/review-messages", submission("emp-2", "eng", "dev", "2026-09-01", 80, 80, 80))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data["messageId"] == "" {
		t.Fatalf("expected a generated message id, got %v %v", data, err)
	}

	rec, env = f.do(t, http.MethodPost, "/review-messages", submission("emp-3", "eng", "dev", "2026-09-01", 80, 80, 80))
	if rec.Code != http.StatusServiceUnavailable || env.Error == nil || env.Error.Code != "queue_unavailable" {
		t.Fatalf("expected 503 once the queue is full, got %d %+v", rec.Code, env.Error)
	}
}

func TestPublishReviewMessageRejectsInvalidBody(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{"", "   ", "{not json"} {
		rec, env := f.do(t, http.MethodPost, "/review-messages", body)
		if rec.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != "validation_error" {
			t.Fatalf("body %q: expected 400 validation_error, got %d %+v", body, rec.Code, env.Error)
		}
		if len(env.Error.Details.Fields) != 1 || env.Error.Details.Fields[0].Field != "body" {
			t.Fatalf("body %q: unexpected issues %+v", body, env.Error.Details.Fields)
		}
	}
	if f.queue.Len() != 0 {
		t.Fatalf("invalid bodies must not be queued, got %d", f.queue.Len())
	}
}

func TestPublishReviewMessageAfterClose(t *testing.T) {
	f := newFixture(t)
	_ = f.queue.Close()

	rec, _ := f.do(t, http.MethodPost, "/review-messages", submission("emp-1", "eng", "dev", "2026-09-01", 80, 80, 80))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from a closed queue, got %d", rec.Code)
	}
}
