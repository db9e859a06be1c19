package grading

import (
	"math"

	"github.com/classtrack/classtrack-api/internal/models"
)

// Transmute maps an initial-grade percentage onto a scaled integer grade.
//
// When an ordered rule table is supplied, the first rule whose closed band
// contains the percentage wins. A percentage below the first band maps to the
// floor rule, above the last band to the ceiling rule, and a value falling in
// the sliver between two bands resolves to the band below it.
//
// Without a table the linear 70-100 mapping applies. The two curves are not
// interchangeable (50% is 80 under the default table but 85 linear), so
// schemes are seeded with the default table and the linear path only serves
// schemes stored without rules.
func Transmute(percent float64, rules []models.TransmutationRule) int {
	if len(rules) == 0 {
		return int(math.Round(70 + percent/100*30))
	}
	if percent < rules[0].MinPercent {
		return rules[0].TransmutedGrade
	}
	if percent > rules[len(rules)-1].MaxPercent {
		return rules[len(rules)-1].TransmutedGrade
	}
	for _, rule := range rules {
		if percent >= rule.MinPercent && percent <= rule.MaxPercent {
			return rule.TransmutedGrade
		}
	}
	for i := len(rules) - 1; i >= 0; i-- {
		if percent >= rules[i].MinPercent {
			return rules[i].TransmutedGrade
		}
	}
	return rules[0].TransmutedGrade
}

// DefaultTransmutationRules returns the DepEd-style 20-band table: 5-point
// bands from 70 at 0% up to 89 at 95-99.99%, with 100% mapped exactly to 90.
func DefaultTransmutationRules() []models.TransmutationRule {
	rules := make([]models.TransmutationRule, 0, 21)
	for grade := 70; grade < 90; grade++ {
		min := float64(grade-70) * 5
		rules = append(rules, models.TransmutationRule{
			MinPercent:      min,
			MaxPercent:      min + 4.99,
			TransmutedGrade: grade,
		})
	}
	rules = append(rules, models.TransmutationRule{MinPercent: 100, MaxPercent: 100, TransmutedGrade: 90})
	return rules
}

// DefaultScheme returns the scheme applied to classes that have not
// configured one: 30/50/20 weights with the default transmutation table.
func DefaultScheme(classID string) *models.GradingScheme {
	return &models.GradingScheme{
		ClassID:                    classID,
		WrittenWorksPercent:        30,
		PerformanceTasksPercent:    50,
		QuarterlyAssessmentPercent: 20,
		TransmutationRules:         DefaultTransmutationRules(),
	}
}
