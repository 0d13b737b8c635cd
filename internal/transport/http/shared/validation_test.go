package shared

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"perfreview/internal/domain/performance"
)

func TestValidatorIssuesSortedByField(t *testing.T) {
	v := NewValidator()
	v.Add("metrics.teamwork", "must be between 0 and 100")
	v.Add(" employeeId ", "is required")
	v.Add("employeeId", "is blank")
	v.Add("ignored", "  ")

	issues := v.Issues()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues, got %+v", issues)
	}
	if issues[0].Field != "employeeId" || issues[0].Reason != "is blank" || issues[2].Field != "metrics.teamwork" {
		t.Fatalf("unexpected order: %+v", issues)
	}
}

func TestFromError(t *testing.T) {
	_, err := performance.Score(performance.Metrics{GoalAchievement: 120, SkillLevel: 50, Teamwork: 50})
	v, ok := FromError(fmt.Errorf("submit: %w", err))
	if !ok {
		t.Fatal("expected wrapped validation error to be recognised")
	}
	issues := v.Issues()
	if len(issues) != 1 || issues[0].Field != "metrics.goalAchievement" {
		t.Fatalf("unexpected issues %+v", issues)
	}

	if _, ok := FromError(performance.ErrNotFound); ok {
		t.Fatal("not-found must not produce a validator")
	}
}

func TestValidatorReject(t *testing.T) {
	rec := httptest.NewRecorder()
	if NewValidator().Reject(rec, "req-1") {
		t.Fatal("empty validator must not reject")
	}

	v := NewValidator()
	v.Add("body", "must not be empty")
	if !v.Reject(rec, "req-1") {
		t.Fatal("expected rejection")
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var env struct {
		RequestID string `json:"requestId"`
		Error     struct {
			Code    string `json:"code"`
			Details struct {
				Fields []performance.FieldIssue `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.Error.Code != "validation_error" || env.RequestID != "req-1" || len(env.Error.Details.Fields) != 1 {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestNilValidatorIsSafe(t *testing.T) {
	var v *Validator
	v.Add("field", "reason")
	if v.HasIssues() || v.Issues() != nil {
		t.Fatal("nil validator should report nothing")
	}
}
