package ledger

import (
	"fmt"
	"sort"

	"github.com/pollen-club/backoffice/pkg/models"
)

// Dimension is the allocation component a category counts towards.
type Dimension string

const (
	DimensionBase  Dimension = "base"
	DimensionBonus Dimension = "bonus"
)

// Categories
const (
	CategoryCommunityActivity = "community_activity"
	CategoryCheckin           = "checkin"
	CategoryViolationHandling = "violation_handling"
	CategoryTaskCompletion    = "task_completion"
	CategoryAnnouncement      = "announcement"
	CategoryEventHosting      = "event_hosting"
	CategoryBirthdayBonus     = "birthday_bonus"
	CategoryMonthlyExcellent  = "monthly_excellent"
)

// Rule is the allowed magnitude of a single entry. Fixed amounts have Min == Max.
type Rule struct {
	Min       int64     `json:"min"`
	Max       int64     `json:"max"`
	Dimension Dimension `json:"dimension"`
}

// Rules maps every category to its rule.
var Rules = map[string]Rule{
	CategoryCommunityActivity: {0, 100, DimensionBase},
	CategoryCheckin:           {0, 50, DimensionBase},
	CategoryViolationHandling: {3, 3, DimensionBase},
	CategoryTaskCompletion:    {1, 10, DimensionBase},
	CategoryAnnouncement:      {5, 5, DimensionBase},
	CategoryEventHosting:      {5, 25, DimensionBonus},
	CategoryBirthdayBonus:     {25, 25, DimensionBonus},
	CategoryMonthlyExcellent:  {10, 30, DimensionBonus},
}

// Categories returns all known categories, sorted.
func Categories() []string {
	categories := make([]string, 0, len(Rules))
	for c := range Rules {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// Check verifies that the magnitude of an entry is allowed for the category.
func Check(category string, magnitude int64) error {
	rule, ok := Rules[category]
	if !ok {
		return fmt.Errorf("%w: %q", models.ErrUnknownCategory, category)
	}

	if magnitude < rule.Min || magnitude > rule.Max {
		if rule.Min == rule.Max {
			return fmt.Errorf("%w: %s is fixed at %d, got %d", models.ErrAmountOutOfRange, category, rule.Min, magnitude)
		}
		return fmt.Errorf("%w: %s allows %d to %d, got %d", models.ErrAmountOutOfRange, category, rule.Min, rule.Max, magnitude)
	}

	return nil
}
