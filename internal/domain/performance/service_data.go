package performance

import (
	"context"
	"fmt"
	"strings"
)

// SubmitReview validates a submission, scores it once and persists it. Both the HTTP
// handler and the queue consumer go through here.
func (s *Service) SubmitReview(ctx context.Context, req SubmissionRequest) (SubmissionResponse, error) {
	review, err := s.newReview(req)
	if err != nil {
		return SubmissionResponse{}, err
	}

	saved, err := s.store.SaveReview(ctx, review)
	if err != nil {
		return SubmissionResponse{}, err
	}
	return SubmissionResponse{ReviewID: saved.ID, Status: SubmissionStatusSubmitted}, nil
}

func (s *Service) newReview(req SubmissionRequest) (Review, error) {
	verr := &ValidationError{}
	required(verr, "employeeId", req.EmployeeID)
	required(verr, "reviewerId", req.ReviewerID)
	required(verr, "department", req.Department)
	required(verr, "role", req.Role)
	if req.Metrics == nil {
		verr.add("metrics", "is required")
	}
	if req.EmployeeInfo == nil {
		verr.add("employeeInfo", "is required")
	}

	reviewDate := s.today()
	if raw := strings.TrimSpace(req.ReviewDate); raw != "" {
		parsed, err := parseReviewDate(raw)
		if err != nil {
			verr.add("reviewDate", "must be a valid date in YYYY-MM-DD format")
		} else {
			reviewDate = parsed
		}
	}
	if err := verr.orNil(); err != nil {
		return Review{}, err
	}

	score, err := Score(*req.Metrics)
	if err != nil {
		return Review{}, err
	}

	info := *req.EmployeeInfo
	if dept := strings.TrimSpace(req.Department); dept != "" {
		info.DepartmentID = dept
	}
	if role := strings.TrimSpace(req.Role); role != "" {
		info.Role = role
	}

	return Review{
		EmployeeID:   strings.TrimSpace(req.EmployeeID),
		ReviewerID:   strings.TrimSpace(req.ReviewerID),
		ReviewDate:   reviewDate,
		Metrics:      *req.Metrics,
		EmployeeInfo: info,
		Comments:     req.Comments,
		OverallScore: score,
	}, nil
}

func required(verr *ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		verr.add(field, "is required")
	}
}

func (s *Service) EmployeeReport(ctx context.Context, employeeID string) (Report, error) {
	reviews, err := s.store.ListReviewsByEmployee(ctx, employeeID)
	if err != nil {
		return Report{}, err
	}
	if len(reviews) == 0 {
		return Report{}, fmt.Errorf("%w: no reviews for employee %s", ErrNotFound, employeeID)
	}

	today := s.today()
	quarter, err := s.store.ListReviewsByEmployeeBetween(ctx, employeeID, monthsBefore(today, QuarterWindowMonths), today)
	if err != nil {
		return Report{}, err
	}
	year, err := s.store.ListReviewsByEmployeeBetween(ctx, employeeID, monthsBefore(today, YearWindowMonths), today)
	if err != nil {
		return Report{}, err
	}

	return buildReport(employeeID, reviews, quarter, year), nil
}

func (s *Service) PeerComparison(ctx context.Context, employeeID string) (PeerComparison, error) {
	reviews, err := s.store.ListReviewsByEmployee(ctx, employeeID)
	if err != nil {
		return PeerComparison{}, err
	}
	if len(reviews) == 0 {
		return PeerComparison{}, fmt.Errorf("%w: no reviews for employee %s", ErrNotFound, employeeID)
	}

	latest := latestReview(reviews)
	group, err := s.store.PeerAggregates(ctx, latest.EmployeeInfo.DepartmentID, latest.EmployeeInfo.Role)
	if err != nil {
		return PeerComparison{}, err
	}
	return buildPeerComparison(employeeID, latest, reviews, group), nil
}

func (s *Service) DepartmentSummary(ctx context.Context, departmentID string) (DepartmentSummary, error) {
	aggregates, err := s.store.DepartmentAggregates(ctx, departmentID)
	if err != nil {
		return DepartmentSummary{}, err
	}
	if len(aggregates) == 0 {
		return DepartmentSummary{}, fmt.Errorf("%w: no reviews for department %s", ErrNotFound, departmentID)
	}
	return buildDepartmentSummary(departmentID, aggregates), nil
}
