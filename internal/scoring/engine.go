// internal/scoring/engine.go
package scoring

import (
	"math"

	"assessment-workers/internal/models"
)

// Sub-score weights: Budget(35%) + Timeline(30%) + TechStack(25%) + Challenges(10%)
const (
	weightBudget     = 0.35
	weightTimeline   = 0.30
	weightTechStack  = 0.25
	weightChallenges = 0.10
)

var budgetScores = map[string]int{
	models.BudgetUnder50K:  30,
	models.Budget50K100K:   50,
	models.Budget100K250K:  70,
	models.Budget250K500K:  85,
	models.BudgetAbove500K: 100,
}

var timelineScores = map[string]int{
	models.TimelineLess3Months:  30,
	models.Timeline3To6Months:   60,
	models.Timeline6To12Months:  85,
	models.TimelineAbove12Month: 100,
}

// modernTechs is the reference set a submitted tech stack is matched against.
var modernTechs = map[string]bool{
	"cloud_infrastructure": true,
	"ai_ml_tools":          true,
	"api_platforms":        true,
	"microservices":        true,
	"devops":               true,
}

// Breakdown carries the four normalized sub-scores, each in [0,100].
type Breakdown struct {
	Budget     int `json:"budget"`
	Timeline   int `json:"timeline"`
	TechStack  int `json:"techStack"`
	Challenges int `json:"challenges"`
}

// Engine computes AI readiness scores. It is pure and holds no mutable
// state; a single instance can be shared freely.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// ComputeScore returns the composite readiness score in [0,100].
// Unknown budget or timeline brackets degrade to a zero contribution,
// they never fail the computation.
func (e *Engine) ComputeScore(a models.Assessment) int {
	score, _ := e.computeWithBreakdown(a)
	return score
}

// ComputeResult returns the score together with its qualitative level and
// display color.
func (e *Engine) ComputeResult(a models.Assessment) models.ScoreResult {
	score := e.ComputeScore(a)
	return models.ScoreResult{
		Score: score,
		Level: e.Level(score),
		Color: e.Color(score),
	}
}

// ComputeBreakdown exposes the per-factor sub-scores alongside the final
// score, for the operator notification and for tests.
func (e *Engine) ComputeBreakdown(a models.Assessment) (int, Breakdown) {
	return e.computeWithBreakdown(a)
}

func (e *Engine) computeWithBreakdown(a models.Assessment) (int, Breakdown) {
	budget := float64(e.budgetScore(a.Budget))
	timeline := float64(e.timelineScore(a.Timeline))
	// The tech sub-score stays fractional until the final rounding so a
	// partial match like 1/3 is not truncated early.
	tech := e.techStackScore(a.TechStack)
	challenges := float64(e.challengesScore(a.Challenges))

	// math.Round: half-up at .5
	sum := budget*weightBudget +
		timeline*weightTimeline +
		tech*weightTechStack +
		challenges*weightChallenges

	b := Breakdown{
		Budget:     int(budget),
		Timeline:   int(timeline),
		TechStack:  int(math.Round(tech)),
		Challenges: int(challenges),
	}

	return clamp(int(math.Round(sum)), 0, 100), b
}

func (e *Engine) budgetScore(budget string) int {
	return budgetScores[budget]
}

func (e *Engine) timelineScore(timeline string) int {
	return timelineScores[timeline]
}

func (e *Engine) techStackScore(techStack []string) float64 {
	if len(techStack) == 0 {
		return 10
	}

	matchCount := 0
	for _, tech := range techStack {
		if modernTechs[tech] {
			matchCount++
		}
	}

	score := float64(matchCount) / float64(len(techStack)) * 100
	if score > 100 {
		score = 100
	}
	return score
}

func (e *Engine) challengesScore(challenges []string) int {
	if len(challenges) == 0 {
		return 100
	}

	score := 100 - len(challenges)*15
	if score < 10 {
		score = 10
	}
	return score
}

// Level maps a score to its qualitative readiness tier.
func (e *Engine) Level(score int) string {
	switch {
	case score >= 80:
		return "Highly Ready"
	case score >= 60:
		return "Ready"
	case score >= 40:
		return "Emerging"
	default:
		return "Beginner"
	}
}

// Color maps a score to the display color token used by the result page.
func (e *Engine) Color(score int) string {
	switch {
	case score >= 80:
		return "#10b981" // green
	case score >= 60:
		return "#3b82f6" // blue
	case score >= 40:
		return "#f59e0b" // amber
	default:
		return "#ef4444" // red
	}
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
