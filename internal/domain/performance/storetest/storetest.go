// Package storetest holds the behaviour every performance.StoreAPI implementation
// must share. Each backend's tests call Run with a constructor for an empty store.
package storetest

import (
	"context"
	"math"
	"testing"
	"time"

	"perfreview/internal/domain/performance"
)

type Factory func(t *testing.T) performance.StoreAPI

func Run(t *testing.T, newStore Factory) {
	t.Helper()
	t.Run("SaveAssignsDistinctIDs", func(t *testing.T) { testSaveAssignsIDs(t, newStore(t)) })
	t.Run("ListByEmployeeRoundTrips", func(t *testing.T) { testListRoundTrips(t, newStore(t)) })
	t.Run("ListBetweenIsInclusive", func(t *testing.T) { testListBetween(t, newStore(t)) })
	t.Run("PeerAggregates", func(t *testing.T) { testPeerAggregates(t, newStore(t)) })
	t.Run("DepartmentAggregates", func(t *testing.T) { testDepartmentAggregates(t, newStore(t)) })
	t.Run("SameDateKeepsInsertionOrder", func(t *testing.T) { testSameDateOrder(t, newStore(t)) })
	t.Run("UnknownKeysAreEmpty", func(t *testing.T) { testUnknownKeys(t, newStore(t)) })
}

func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Review(employeeID string, date time.Time, score float64, dept, role string) performance.Review {
	return performance.Review{
		EmployeeID:   employeeID,
		ReviewerID:   "mgr-1",
		ReviewDate:   date,
		Metrics:      performance.Metrics{GoalAchievement: score, SkillLevel: score, Teamwork: score},
		EmployeeInfo: performance.EmployeeInfo{DepartmentID: dept, Role: role},
		OverallScore: score,
	}
}

func save(t *testing.T, store performance.StoreAPI, reviews ...performance.Review) []performance.Review {
	t.Helper()
	out := make([]performance.Review, 0, len(reviews))
	for _, review := range reviews {
		saved, err := store.SaveReview(context.Background(), review)
		if err != nil {
			t.Fatalf("save review: %v", err)
		}
		out = append(out, saved)
	}
	return out
}

func testSaveAssignsIDs(t *testing.T, store performance.StoreAPI) {
	saved := save(t, store,
		Review("emp-1", Day(2026, time.January, 1), 80, "engineering", "developer"),
		Review("emp-1", Day(2026, time.January, 2), 90, "engineering", "developer"),
	)
	if saved[0].ID == "" || saved[1].ID == "" {
		t.Fatalf("expected ids to be assigned, got %q and %q", saved[0].ID, saved[1].ID)
	}
	if saved[0].ID == saved[1].ID {
		t.Fatalf("expected distinct ids, got %q twice", saved[0].ID)
	}
}

func testListRoundTrips(t *testing.T, store performance.StoreAPI) {
	review := performance.Review{
		EmployeeID:   "emp-1",
		ReviewerID:   "mgr-7",
		ReviewDate:   Day(2026, time.March, 15),
		Metrics:      performance.Metrics{GoalAchievement: 85, SkillLevel: 90, Teamwork: 95},
		EmployeeInfo: performance.EmployeeInfo{DepartmentID: "engineering", Role: "developer"},
		Comments:     "consistent delivery",
		OverallScore: 89.5,
	}
	saved := save(t, store, review, Review("emp-2", Day(2026, time.March, 15), 50, "engineering", "developer"))

	got, err := store.ListReviewsByEmployee(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one review for emp-1, got %d", len(got))
	}
	want := review
	want.ID = saved[0].ID
	if !got[0].ReviewDate.Equal(want.ReviewDate) {
		t.Fatalf("expected review date %v, got %v", want.ReviewDate, got[0].ReviewDate)
	}
	got[0].ReviewDate = want.ReviewDate
	if got[0] != want {
		t.Fatalf("expected %+v, got %+v", want, got[0])
	}
}

func testListBetween(t *testing.T, store performance.StoreAPI) {
	save(t, store,
		Review("emp-1", Day(2026, time.January, 31), 10, "engineering", "developer"),
		Review("emp-1", Day(2026, time.February, 1), 20, "engineering", "developer"),
		Review("emp-1", Day(2026, time.February, 15), 30, "engineering", "developer"),
		Review("emp-1", Day(2026, time.March, 1), 40, "engineering", "developer"),
		Review("emp-1", Day(2026, time.March, 2), 50, "engineering", "developer"),
		Review("emp-2", Day(2026, time.February, 15), 60, "engineering", "developer"),
	)

	got, err := store.ListReviewsByEmployeeBetween(context.Background(), "emp-1", Day(2026, time.February, 1), Day(2026, time.March, 1))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	var total float64
	for _, review := range got {
		total += review.OverallScore
	}
	if len(got) != 3 || total != 90 {
		t.Fatalf("expected the three reviews inside the inclusive range, got %+v", got)
	}
}

func testPeerAggregates(t *testing.T, store performance.StoreAPI) {
	save(t, store,
		Review("emp-3", Day(2026, time.January, 1), 70, "engineering", "developer"),
		Review("emp-1", Day(2026, time.January, 1), 80, "engineering", "developer"),
		Review("emp-1", Day(2026, time.February, 1), 90, "engineering", "developer"),
		Review("emp-2", Day(2026, time.January, 1), 60, "engineering", "tester"),
		Review("emp-4", Day(2026, time.January, 1), 99, "sales", "developer"),
	)

	got, err := store.PeerAggregates(context.Background(), "engineering", "developer")
	if err != nil {
		t.Fatalf("peer aggregates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two developers in engineering, got %+v", got)
	}
	if got[0].EmployeeID != "emp-1" || !near(got[0].AverageScore, 85) {
		t.Fatalf("unexpected first aggregate: %+v", got[0])
	}
	if got[1].EmployeeID != "emp-3" || !near(got[1].AverageScore, 70) {
		t.Fatalf("unexpected second aggregate: %+v", got[1])
	}
}

func testDepartmentAggregates(t *testing.T, store performance.StoreAPI) {
	save(t, store,
		Review("emp-2", Day(2026, time.March, 1), 90, "engineering", "lead"),
		Review("emp-2", Day(2026, time.January, 1), 70, "engineering", "developer"),
		Review("emp-1", Day(2026, time.January, 1), 60, "engineering", "tester"),
		Review("emp-3", Day(2026, time.January, 1), 99, "sales", "rep"),
	)

	got, err := store.DepartmentAggregates(context.Background(), "engineering")
	if err != nil {
		t.Fatalf("department aggregates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected two engineering employees, got %+v", got)
	}
	if got[0].EmployeeID != "emp-1" || !near(got[0].AverageScore, 60) || got[0].LatestRole != "tester" {
		t.Fatalf("unexpected first aggregate: %+v", got[0])
	}
	if got[1].EmployeeID != "emp-2" || !near(got[1].AverageScore, 80) || got[1].LatestRole != "lead" {
		t.Fatalf("expected latest role lead for emp-2, got %+v", got[1])
	}
}

// Same-date reviews must come back in insertion order from both list calls, and the
// department aggregate must take its role from the last of them.
func testSameDateOrder(t *testing.T, store performance.StoreAPI) {
	ctx := context.Background()
	saved := save(t, store,
		Review("emp-1", Day(2026, time.February, 1), 70, "engineering", "developer"),
		Review("emp-1", Day(2026, time.March, 1), 80, "engineering", "lead"),
		Review("emp-1", Day(2026, time.March, 1), 90, "engineering", "manager"),
		Review("emp-1", Day(2026, time.March, 1), 60, "engineering", "architect"),
	)

	all, err := store.ListReviewsByEmployee(ctx, "emp-1")
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	assertIDs(t, "list", all, saved)

	between, err := store.ListReviewsByEmployeeBetween(ctx, "emp-1", Day(2026, time.February, 1), Day(2026, time.March, 1))
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	assertIDs(t, "list between", between, saved)

	aggs, err := store.DepartmentAggregates(ctx, "engineering")
	if err != nil {
		t.Fatalf("department aggregates: %v", err)
	}
	if len(aggs) != 1 || aggs[0].LatestRole != "architect" {
		t.Fatalf("expected the last same-date review's role, got %+v", aggs)
	}
}

func assertIDs(t *testing.T, label string, got, want []performance.Review) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d reviews, got %d", label, len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Fatalf("%s: position %d holds %s, expected %s (insertion order)", label, i, got[i].ID, want[i].ID)
		}
	}
}

func testUnknownKeys(t *testing.T, store performance.StoreAPI) {
	ctx := context.Background()
	save(t, store, Review("emp-1", Day(2026, time.January, 1), 80, "engineering", "developer"))

	if got, err := store.ListReviewsByEmployee(ctx, "ghost"); err != nil || len(got) != 0 {
		t.Fatalf("expected no reviews, got %+v (%v)", got, err)
	}
	if got, err := store.PeerAggregates(ctx, "engineering", "ghost"); err != nil || len(got) != 0 {
		t.Fatalf("expected no peers, got %+v (%v)", got, err)
	}
	if got, err := store.DepartmentAggregates(ctx, "ghost"); err != nil || len(got) != 0 {
		t.Fatalf("expected no department rows, got %+v (%v)", got, err)
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
