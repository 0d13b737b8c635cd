package performance

import (
	"math"
	"sort"
	"time"
)

// round2 rounds half away from zero at two decimal places. Only output
// projections are rounded; stored scores keep full precision.
func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func averageScore(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var total float64
	for _, review := range reviews {
		total += review.OverallScore
	}
	return total / float64(len(reviews))
}

// latestReview picks the review with the greatest review date. On equal dates the
// last one in store order wins; stores list reviews in insertion order, so this is
// the same review their department aggregation takes the latest role from.
func latestReview(reviews []Review) Review {
	latest := reviews[0]
	for _, review := range reviews[1:] {
		if !review.ReviewDate.Before(latest.ReviewDate) {
			latest = review
		}
	}
	return latest
}

func reportEntries(reviews []Review) []ReportEntry {
	sorted := make([]Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReviewDate.After(sorted[j].ReviewDate)
	})

	entries := make([]ReportEntry, 0, len(sorted))
	for _, review := range sorted {
		entries = append(entries, ReportEntry{
			ReviewDate:   review.ReviewDate.Format(dateLayout),
			Metrics:      review.Metrics,
			Comments:     review.Comments,
			OverallScore: round2(review.OverallScore),
		})
	}
	return entries
}

func buildReport(employeeID string, all, quarter, year []Review) Report {
	return Report{
		EmployeeID:   employeeID,
		DepartmentID: latestReview(all).EmployeeInfo.DepartmentID,
		AverageScore: round2(averageScore(all)),
		Reviews:      reportEntries(all),
		Trends: Trends{
			LastQuarter: round2(averageScore(quarter)),
			LastYear:    round2(averageScore(year)),
		},
	}
}

// buildPeerComparison ranks the subject against its peer group. The subject's own
// aggregate is dropped from the group before any peer statistic is taken. A peer
// counts towards the percentile when its average is at or below the subject's.
func buildPeerComparison(employeeID string, latest Review, own []Review, group []PeerAggregate) PeerComparison {
	employeeAverage := averageScore(own)

	var peerTotal float64
	var peers, atOrBelow int
	for _, peer := range group {
		if peer.EmployeeID == employeeID {
			continue
		}
		peers++
		peerTotal += peer.AverageScore
		if peer.AverageScore <= employeeAverage {
			atOrBelow++
		}
	}

	peerAverage := 0.0
	percentile := EmptyPeerPercentile
	if peers > 0 {
		peerAverage = peerTotal / float64(peers)
		percentile = float64(atOrBelow) / float64(peers) * 100
	}

	return PeerComparison{
		EmployeeID:       employeeID,
		DepartmentID:     latest.EmployeeInfo.DepartmentID,
		Role:             latest.EmployeeInfo.Role,
		AverageScore:     round2(employeeAverage),
		PercentileRank:   round2(percentile),
		PeerAverageScore: round2(peerAverage),
	}
}

func buildDepartmentSummary(departmentID string, aggregates []DepartmentAggregate) DepartmentSummary {
	var total float64
	for _, agg := range aggregates {
		total += agg.AverageScore
	}

	ranked := make([]DepartmentAggregate, len(aggregates))
	copy(ranked, aggregates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].AverageScore > ranked[j].AverageScore
	})

	topCount := min(TopPerformerCount, len(ranked))
	top := make([]Performer, 0, topCount)
	for i, agg := range ranked[:topCount] {
		rank := i + 1
		top = append(top, Performer{
			EmployeeID:   agg.EmployeeID,
			OverallScore: round2(agg.AverageScore),
			Role:         agg.LatestRole,
			Rank:         &rank,
		})
	}

	low := make([]Performer, 0, len(ranked)-topCount)
	for _, agg := range ranked[topCount:] {
		low = append(low, Performer{
			EmployeeID:   agg.EmployeeID,
			OverallScore: round2(agg.AverageScore),
			Role:         agg.LatestRole,
		})
	}

	return DepartmentSummary{
		DepartmentID:  departmentID,
		AverageScore:  round2(total / float64(len(aggregates))),
		TopPerformers: top,
		LowPerformers: low,
	}
}

// dateOnly truncates t to its calendar date in UTC.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// monthsBefore steps back whole calendar months, clamping the day to the end of
// the target month (May 31 minus three months is Feb 28 or 29).
func monthsBefore(day time.Time, months int) time.Time {
	y, m, d := day.Date()
	firstOfTarget := time.Date(y, m-time.Month(months), 1, 0, 0, 0, 0, day.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), min(d, lastDay), 0, 0, 0, 0, day.Location())
}

// parseReviewDate accepts YYYY-MM-DD or RFC3339 and keeps only the calendar date.
func parseReviewDate(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := parsed.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return dateOnly(parsed), nil
}
