// Package memstore keeps reviews in process memory. It is the default store for
// local runs and the backing store of handler tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/domain/performance"
)

type Store struct {
	mu      sync.RWMutex
	reviews []performance.Review
}

var _ performance.StoreAPI = (*Store)(nil)

func New() *Store {
	return &Store{}
}

func (s *Store) SaveReview(_ context.Context, review performance.Review) (performance.Review, error) {
	review.ID = uuid.NewString()
	s.mu.Lock()
	s.reviews = append(s.reviews, review)
	s.mu.Unlock()
	return review, nil
}

func (s *Store) ListReviewsByEmployee(_ context.Context, employeeID string) ([]performance.Review, error) {
	return s.filter(func(r performance.Review) bool {
		return r.EmployeeID == employeeID
	}), nil
}

func (s *Store) ListReviewsByEmployeeBetween(_ context.Context, employeeID string, start, end time.Time) ([]performance.Review, error) {
	return s.filter(func(r performance.Review) bool {
		return r.EmployeeID == employeeID && !r.ReviewDate.Before(start) && !r.ReviewDate.After(end)
	}), nil
}

func (s *Store) PeerAggregates(_ context.Context, departmentID, role string) ([]performance.PeerAggregate, error) {
	groups := s.groupByEmployee(func(r performance.Review) bool {
		return r.EmployeeInfo.DepartmentID == departmentID && r.EmployeeInfo.Role == role
	})

	out := make([]performance.PeerAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, performance.PeerAggregate{EmployeeID: g.employeeID, AverageScore: g.average()})
	}
	return out, nil
}

func (s *Store) DepartmentAggregates(_ context.Context, departmentID string) ([]performance.DepartmentAggregate, error) {
	groups := s.groupByEmployee(func(r performance.Review) bool {
		return r.EmployeeInfo.DepartmentID == departmentID
	})

	out := make([]performance.DepartmentAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, performance.DepartmentAggregate{
			EmployeeID:   g.employeeID,
			AverageScore: g.average(),
			LatestRole:   g.latest.EmployeeInfo.Role,
		})
	}
	return out, nil
}

func (s *Store) filter(keep func(performance.Review) bool) []performance.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []performance.Review
	for _, review := range s.reviews {
		if keep(review) {
			out = append(out, review)
		}
	}
	return out
}

type employeeGroup struct {
	employeeID string
	total      float64
	count      int
	latest     performance.Review
}

func (g *employeeGroup) average() float64 {
	return g.total / float64(g.count)
}

// groupByEmployee returns matching reviews grouped per employee in employee id
// order. latest is the newest review date, later inserts winning ties.
func (s *Store) groupByEmployee(keep func(performance.Review) bool) []*employeeGroup {
	byID := make(map[string]*employeeGroup)
	for _, review := range s.filter(keep) {
		g, ok := byID[review.EmployeeID]
		if !ok {
			g = &employeeGroup{employeeID: review.EmployeeID, latest: review}
			byID[review.EmployeeID] = g
		}
		g.total += review.OverallScore
		g.count++
		if !review.ReviewDate.Before(g.latest.ReviewDate) {
			g.latest = review
		}
	}

	groups := make([]*employeeGroup, 0, len(byID))
	for _, g := range byID {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].employeeID < groups[j].employeeID
	})
	return groups
}
