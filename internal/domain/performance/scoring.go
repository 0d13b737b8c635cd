package performance

import "fmt"

// ValidateMetrics rejects any component outside [MetricMin, MetricMax]. Bounds are inclusive.
func ValidateMetrics(m Metrics) error {
	verr := &ValidationError{}
	checkMetric(verr, "metrics.goalAchievement", m.GoalAchievement)
	checkMetric(verr, "metrics.skillLevel", m.SkillLevel)
	checkMetric(verr, "metrics.teamwork", m.Teamwork)
	return verr.orNil()
}

func checkMetric(verr *ValidationError, field string, value float64) {
	// NaN fails both comparisons, so test for the accepted range instead.
	if !(value >= MetricMin && value <= MetricMax) {
		verr.add(field, fmt.Sprintf("must be between %g and %g", MetricMin, MetricMax))
	}
}

// Score returns the weighted overall score of a review. The result is never rounded.
func Score(m Metrics) (float64, error) {
	if err := ValidateMetrics(m); err != nil {
		return 0, err
	}
	return m.GoalAchievement*GoalAchievementWeight +
		m.SkillLevel*SkillLevelWeight +
		m.Teamwork*TeamworkWeight, nil
}
