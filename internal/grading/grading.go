// Package grading implements the pure grade computation engine. It takes a
// student's submissions, the class activities and the class grading scheme as
// plain arguments and returns a ComputedGrades snapshot. It performs no I/O,
// keeps no state and is safe to call concurrently.
package grading

import (
	"math"

	"github.com/classtrack/classtrack-api/internal/models"
)

// Compute turns raw submissions into per-category aggregates, an initial
// weighted percentage and transmuted current/tentative grades.
//
// Submissions referencing archived or unknown activities are ignored. A nil
// scheme yields aggregates and tallies but no grades: a grade cannot be
// computed without weights. Missing data degrades to nil grades, never to
// zero; "no data" and "zero score" are distinct outcomes.
func Compute(submissions []models.Submission, activities []models.Activity, scheme *models.GradingScheme) models.ComputedGrades {
	active := make(map[string]models.Activity, len(activities))
	for _, activity := range activities {
		if activity.Archived {
			continue
		}
		active[activity.ID] = activity
	}

	var result models.ComputedGrades
	approved := newAccumulator()
	pooled := newAccumulator()

	for _, submission := range submissions {
		activity, ok := active[submission.ActivityID]
		if !ok {
			continue
		}
		switch {
		case submission.Status == models.SubmissionApproved:
			result.ApprovedCount++
			approved.add(activity.Category, submission.RawScore, activity.MaxScore)
			pooled.add(activity.Category, submission.RawScore, activity.MaxScore)
		case submission.Status == models.SubmissionPending:
			result.PendingCount++
			pooled.add(activity.Category, submission.RawScore, activity.MaxScore)
		case submission.Status.IsRejected():
			result.NeedsRevisionCount++
		}
	}

	result.Approved = approved.breakdown()
	result.Pooled = pooled.breakdown()
	result.IsEligibleForTentative = pooled.complete()

	if scheme == nil {
		return result
	}

	if approved.complete() {
		initial := weightedSum(approved, scheme)
		current := Transmute(initial, scheme.TransmutationRules)
		rounded := round2(initial)
		result.InitialGrade = &rounded
		result.CurrentGrade = &current
	}

	if result.IsEligibleForTentative {
		tentative := Transmute(weightedSum(pooled, scheme), scheme.TransmutationRules)
		result.TentativeGrade = &tentative
	}

	result.IsSynced = result.IsEligibleForTentative &&
		result.PendingCount == 0 &&
		result.NeedsRevisionCount == 0 &&
		result.CurrentGrade != nil
	if result.IsSynced {
		// Once nothing is outstanding the two grades must read the same,
		// even if the two input sets would round apart.
		synced := *result.CurrentGrade
		result.TentativeGrade = &synced
	}

	return result
}

// accumulator collects earned/max totals per category at full precision.
type accumulator struct {
	earned map[models.ActivityCategory]float64
	max    map[models.ActivityCategory]float64
	count  map[models.ActivityCategory]int
}

func newAccumulator() *accumulator {
	return &accumulator{
		earned: make(map[models.ActivityCategory]float64, 3),
		max:    make(map[models.ActivityCategory]float64, 3),
		count:  make(map[models.ActivityCategory]int, 3),
	}
}

func (a *accumulator) add(category models.ActivityCategory, earned, max float64) {
	a.earned[category] += earned
	a.max[category] += max
	a.count[category]++
}

// percent returns the category percentage at full precision, 0 when max is 0.
func (a *accumulator) percent(category models.ActivityCategory) float64 {
	if a.max[category] <= 0 {
		return 0
	}
	return a.earned[category] / a.max[category] * 100
}

// complete reports whether every category has at least one contributing
// submission with a positive max score.
func (a *accumulator) complete() bool {
	for _, category := range categories {
		if a.count[category] == 0 || a.max[category] <= 0 {
			return false
		}
	}
	return true
}

func (a *accumulator) breakdown() models.CategoryBreakdown {
	aggregate := func(category models.ActivityCategory) models.CategoryAggregate {
		return models.CategoryAggregate{
			Earned:  a.earned[category],
			Max:     a.max[category],
			Percent: round2(a.percent(category)),
			Count:   a.count[category],
		}
	}
	return models.CategoryBreakdown{
		WrittenWorks:        aggregate(models.CategoryWrittenWork),
		PerformanceTasks:    aggregate(models.CategoryPerformanceTask),
		QuarterlyAssessment: aggregate(models.CategoryQuarterlyAssessment),
	}
}

var categories = []models.ActivityCategory{
	models.CategoryWrittenWork,
	models.CategoryPerformanceTask,
	models.CategoryQuarterlyAssessment,
}

// weightedSum computes the initial grade at full precision: each category
// percentage scaled by its scheme weight. Rounding happens only at the edges.
func weightedSum(a *accumulator, scheme *models.GradingScheme) float64 {
	sum := 0.0
	for _, category := range categories {
		sum += a.percent(category) * scheme.WeightFor(category)
	}
	return sum / 100
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
