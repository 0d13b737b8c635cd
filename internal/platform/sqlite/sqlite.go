// Package sqlite is an embedded, single-file review store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"perfreview/internal/domain/performance"
)

const schema = `
CREATE TABLE IF NOT EXISTS performance_reviews (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	id               TEXT NOT NULL UNIQUE,
	employee_id      TEXT NOT NULL,
	reviewer_id      TEXT NOT NULL,
	review_date      TEXT NOT NULL,
	goal_achievement REAL NOT NULL,
	skill_level      REAL NOT NULL,
	teamwork         REAL NOT NULL,
	department_id    TEXT NOT NULL,
	role             TEXT NOT NULL,
	comments         TEXT NOT NULL DEFAULT '',
	overall_score    REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reviews_employee_date ON performance_reviews(employee_id, review_date);
CREATE INDEX IF NOT EXISTS idx_reviews_department_role ON performance_reviews(department_id, role);
`

// review_date is stored as YYYY-MM-DD so text comparison orders by calendar date.
const dateLayout = "2006-01-02"

const reviewColumns = `id, employee_id, reviewer_id, review_date, goal_achievement, skill_level, teamwork, department_id, role, comments, overall_score`

type Store struct {
	db *sql.DB
}

var _ performance.StoreAPI = (*Store)(nil)

// Open opens the database at path with WAL pragmas and creates the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) SaveReview(ctx context.Context, review performance.Review) (performance.Review, error) {
	review.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_reviews (`+reviewColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		review.ID, review.EmployeeID, review.ReviewerID, review.ReviewDate.Format(dateLayout),
		review.Metrics.GoalAchievement, review.Metrics.SkillLevel, review.Metrics.Teamwork,
		review.EmployeeInfo.DepartmentID, review.EmployeeInfo.Role, review.Comments, review.OverallScore)
	if err != nil {
		return performance.Review{}, fmt.Errorf("insert review: %w", err)
	}
	return review, nil
}

func (s *Store) ListReviewsByEmployee(ctx context.Context, employeeID string) ([]performance.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reviewColumns+`
		FROM performance_reviews
		WHERE employee_id = ?
		ORDER BY seq`, employeeID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return scanReviews(rows)
}

func (s *Store) ListReviewsByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]performance.Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reviewColumns+`
		FROM performance_reviews
		WHERE employee_id = ? AND review_date >= ? AND review_date <= ?
		ORDER BY seq`, employeeID, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return scanReviews(rows)
}

func (s *Store) PeerAggregates(ctx context.Context, departmentID, role string) ([]performance.PeerAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, AVG(overall_score)
		FROM performance_reviews
		WHERE department_id = ? AND role = ?
		GROUP BY employee_id
		ORDER BY employee_id`, departmentID, role)
	if err != nil {
		return nil, fmt.Errorf("query peer aggregates: %w", err)
	}
	defer rows.Close()

	var out []performance.PeerAggregate
	for rows.Next() {
		var agg performance.PeerAggregate
		if err := rows.Scan(&agg.EmployeeID, &agg.AverageScore); err != nil {
			return nil, fmt.Errorf("scan peer aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (s *Store) DepartmentAggregates(ctx context.Context, departmentID string) ([]performance.DepartmentAggregate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.employee_id,
		       AVG(r.overall_score),
		       (SELECT l.role FROM performance_reviews l
		         WHERE l.department_id = r.department_id AND l.employee_id = r.employee_id
		         ORDER BY l.review_date DESC, l.seq DESC
		         LIMIT 1)
		FROM performance_reviews r
		WHERE r.department_id = ?
		GROUP BY r.employee_id
		ORDER BY r.employee_id`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("query department aggregates: %w", err)
	}
	defer rows.Close()

	var out []performance.DepartmentAggregate
	for rows.Next() {
		var agg performance.DepartmentAggregate
		if err := rows.Scan(&agg.EmployeeID, &agg.AverageScore, &agg.LatestRole); err != nil {
			return nil, fmt.Errorf("scan department aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func scanReviews(rows *sql.Rows) ([]performance.Review, error) {
	defer rows.Close()

	var reviews []performance.Review
	for rows.Next() {
		var review performance.Review
		var reviewDate string
		if err := rows.Scan(&review.ID, &review.EmployeeID, &review.ReviewerID, &reviewDate,
			&review.Metrics.GoalAchievement, &review.Metrics.SkillLevel, &review.Metrics.Teamwork,
			&review.EmployeeInfo.DepartmentID, &review.EmployeeInfo.Role, &review.Comments, &review.OverallScore); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		parsed, err := time.Parse(dateLayout, reviewDate)
		if err != nil {
			return nil, fmt.Errorf("parse review date %q: %w", reviewDate, err)
		}
		review.ReviewDate = parsed
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}
