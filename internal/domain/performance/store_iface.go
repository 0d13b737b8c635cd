package performance

import (
	"context"
	"time"
)

// StoreAPI is the review store gateway. Implementations assign review ids on save,
// match date ranges inclusively and return aggregates ordered by employee id.
type StoreAPI interface {
	SaveReview(ctx context.Context, review Review) (Review, error)
	ListReviewsByEmployee(ctx context.Context, employeeID string) ([]Review, error)
	ListReviewsByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]Review, error)
	PeerAggregates(ctx context.Context, departmentID, role string) ([]PeerAggregate, error)
	DepartmentAggregates(ctx context.Context, departmentID string) ([]DepartmentAggregate, error)
}
