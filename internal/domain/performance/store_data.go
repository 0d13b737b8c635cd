package performance

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const reviewColumns = `id::text, employee_id, reviewer_id, review_date, goal_achievement, skill_level, teamwork, department_id, role, COALESCE(comments, ''), overall_score`

func (s *Store) SaveReview(ctx context.Context, review Review) (Review, error) {
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO performance_reviews (employee_id, reviewer_id, review_date, goal_achievement, skill_level, teamwork, department_id, role, comments, overall_score)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    RETURNING id::text
  `, review.EmployeeID, review.ReviewerID, review.ReviewDate, review.Metrics.GoalAchievement, review.Metrics.SkillLevel, review.Metrics.Teamwork,
		review.EmployeeInfo.DepartmentID, review.EmployeeInfo.Role, nullIfEmpty(review.Comments), review.OverallScore).Scan(&review.ID); err != nil {
		return Review{}, err
	}
	return review, nil
}

func (s *Store) ListReviewsByEmployee(ctx context.Context, employeeID string) ([]Review, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+reviewColumns+`
    FROM performance_reviews
    WHERE employee_id = $1
    ORDER BY seq
  `, employeeID)
	if err != nil {
		return nil, err
	}
	return scanReviews(rows)
}

func (s *Store) ListReviewsByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]Review, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+reviewColumns+`
    FROM performance_reviews
    WHERE employee_id = $1 AND review_date >= $2 AND review_date <= $3
    ORDER BY seq
  `, employeeID, start, end)
	if err != nil {
		return nil, err
	}
	return scanReviews(rows)
}

func (s *Store) PeerAggregates(ctx context.Context, departmentID, role string) ([]PeerAggregate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, AVG(overall_score)
    FROM performance_reviews
    WHERE department_id = $1 AND role = $2
    GROUP BY employee_id
    ORDER BY employee_id
  `, departmentID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PeerAggregate
	for rows.Next() {
		var agg PeerAggregate
		if err := rows.Scan(&agg.EmployeeID, &agg.AverageScore); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (s *Store) DepartmentAggregates(ctx context.Context, departmentID string) ([]DepartmentAggregate, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id,
           AVG(overall_score),
           (ARRAY_AGG(role ORDER BY review_date DESC, seq DESC))[1]
    FROM performance_reviews
    WHERE department_id = $1
    GROUP BY employee_id
    ORDER BY employee_id
  `, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DepartmentAggregate
	for rows.Next() {
		var agg DepartmentAggregate
		if err := rows.Scan(&agg.EmployeeID, &agg.AverageScore, &agg.LatestRole); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func scanReviews(rows pgx.Rows) ([]Review, error) {
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		if err := rows.Scan(&review.ID, &review.EmployeeID, &review.ReviewerID, &review.ReviewDate,
			&review.Metrics.GoalAchievement, &review.Metrics.SkillLevel, &review.Metrics.Teamwork,
			&review.EmployeeInfo.DepartmentID, &review.EmployeeInfo.Role, &review.Comments, &review.OverallScore); err != nil {
			return nil, err
		}
		review.ReviewDate = dateOnly(review.ReviewDate)
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
