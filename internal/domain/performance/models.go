package performance

import "time"

type Metrics struct {
	GoalAchievement float64 `json:"goalAchievement"`
	SkillLevel      float64 `json:"skillLevel"`
	Teamwork        float64 `json:"teamwork"`
}

// EmployeeInfo is the organisational snapshot taken when a review is created.
type EmployeeInfo struct {
	DepartmentID string `json:"departmentId"`
	Role         string `json:"role"`
}

type Review struct {
	ID           string       `json:"id"`
	EmployeeID   string       `json:"employeeId"`
	ReviewerID   string       `json:"reviewerId"`
	ReviewDate   time.Time    `json:"reviewDate"`
	Metrics      Metrics      `json:"metrics"`
	EmployeeInfo EmployeeInfo `json:"employeeInfo"`
	Comments     string       `json:"comments,omitempty"`
	OverallScore float64      `json:"overallScore"`
}

type PeerAggregate struct {
	EmployeeID   string
	AverageScore float64
}

type DepartmentAggregate struct {
	EmployeeID   string
	AverageScore float64
	LatestRole   string
}

type SubmissionRequest struct {
	EmployeeID   string        `json:"employeeId"`
	ReviewerID   string        `json:"reviewerId"`
	Department   string        `json:"department"`
	Role         string        `json:"role"`
	ReviewDate   string        `json:"reviewDate"`
	Metrics      *Metrics      `json:"metrics"`
	EmployeeInfo *EmployeeInfo `json:"employeeInfo"`
	Comments     string        `json:"comments"`
}

type SubmissionResponse struct {
	ReviewID string `json:"reviewId"`
	Status   string `json:"status"`
}

type ReportEntry struct {
	ReviewDate   string  `json:"reviewDate"`
	Metrics      Metrics `json:"metrics"`
	Comments     string  `json:"comments,omitempty"`
	OverallScore float64 `json:"overallScore"`
}

type Trends struct {
	LastQuarter float64 `json:"lastQuarter"`
	LastYear    float64 `json:"lastYear"`
}

type Report struct {
	EmployeeID   string        `json:"employeeId"`
	DepartmentID string        `json:"departmentId"`
	AverageScore float64       `json:"averageScore"`
	Reviews      []ReportEntry `json:"reviews"`
	Trends       Trends        `json:"trends"`
}

type PeerComparison struct {
	EmployeeID       string  `json:"employeeId"`
	DepartmentID     string  `json:"departmentId"`
	Role             string  `json:"role"`
	AverageScore     float64 `json:"averageScore"`
	PercentileRank   float64 `json:"percentileRank"`
	PeerAverageScore float64 `json:"peerAverageScore"`
}

// Performer is one ranked department member. Rank is only set for top performers.
type Performer struct {
	EmployeeID   string  `json:"employeeId"`
	OverallScore float64 `json:"overallScore"`
	Role         string  `json:"role,omitempty"`
	Rank         *int    `json:"rank,omitempty"`
}

type DepartmentSummary struct {
	DepartmentID  string      `json:"departmentId"`
	AverageScore  float64     `json:"averageScore"`
	TopPerformers []Performer `json:"topPerformers"`
	LowPerformers []Performer `json:"lowPerformers"`
}
