package performance

const (
	GoalAchievementWeight = 0.4
	SkillLevelWeight      = 0.3
	TeamworkWeight        = 0.3

	MetricMin = 0.0
	MetricMax = 100.0

	SubmissionStatusSubmitted = "submitted"

	// Trailing trend windows, in calendar months ending today.
	QuarterWindowMonths = 3
	YearWindowMonths    = 12

	TopPerformerCount = 2

	// EmptyPeerPercentile is reported when no peer remains after excluding the subject.
	EmptyPeerPercentile = 100.0

	dateLayout = "2006-01-02"
)
