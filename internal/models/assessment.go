// internal/models/assessment.go
package models

import "time"

// Budget brackets accepted on submission. Unknown values are tolerated by
// the scoring engine and contribute zero.
const (
	BudgetUnder50K  = "under_50k"
	Budget50K100K   = "50k_100k"
	Budget100K250K  = "100k_250k"
	Budget250K500K  = "250k_500k"
	BudgetAbove500K = "above_500k"
)

// Timeline brackets accepted on submission.
const (
	TimelineLess3Months  = "less_3_months"
	Timeline3To6Months   = "3_6_months"
	Timeline6To12Months  = "6_12_months"
	TimelineAbove12Month = "above_12_months"
)

// Assessment is the submitted questionnaire. It is immutable once stored.
type Assessment struct {
	CompanyName string   `json:"companyName"`
	Industry    string   `json:"industry"`
	TeamSize    int      `json:"teamSize"`
	Email       string   `json:"email"`
	TechStack   []string `json:"techStack"`
	Challenges  []string `json:"challenges"`
	Budget      string   `json:"budget"`
	Timeline    string   `json:"timeline"`
}

// ScoreResult is derived deterministically from an Assessment and never
// mutated afterwards.
type ScoreResult struct {
	Score int    `json:"aiReadinessScore"`
	Level string `json:"readinessLevel"`
	Color string `json:"readinessColor"`
}

// AssessmentRecord is the persisted result document: the assessment plus its
// score, as written by the submission path.
type AssessmentRecord struct {
	ID         string      `json:"id"`
	Assessment Assessment  `json:"assessment"`
	Result     ScoreResult `json:"result"`
	CreatedAt  time.Time   `json:"createdAt"`
}
