// Package shared holds request validation helpers used by every handler package.
package shared

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"perfreview/internal/domain/performance"
	"perfreview/internal/transport/http/api"
)

// Validator collects field issues for one request and renders them as a single
// 400 envelope. Issues are reported sorted by field, then reason.
type Validator struct {
	issues []performance.FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

// FromError seeds a validator with the issues of a domain validation error. It
// reports false when err carries no field issues.
func FromError(err error) (*Validator, bool) {
	var verr *performance.ValidationError
	if !errors.As(err, &verr) || len(verr.Issues) == 0 {
		return nil, false
	}
	v := NewValidator()
	for _, issue := range verr.Issues {
		v.Add(issue.Field, issue.Reason)
	}
	return v, true
}

// Add records an issue. Issues without a reason are dropped.
func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, performance.FieldIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

func (v *Validator) Issues() []performance.FieldIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b performance.FieldIssue) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Reason, b.Reason)
	})
	return out
}

// Reject writes the validation envelope when issues were recorded and reports
// whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": v.Issues()}, requestID)
	return true
}
