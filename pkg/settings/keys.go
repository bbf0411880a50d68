package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	KeyBudgetTotal                = "budget_total"
	KeyFormalSeatCount            = "formal_seat_count"
	KeyBaseAllocation             = "base_allocation"
	KeyUnitMin                    = "unit_min"
	KeyUnitMax                    = "unit_max"
	KeyPointsToUnitsRatio         = "points_to_units_ratio"
	KeyUnitValue                  = "unit_value"
	KeyCurrency                   = "currency"
	KeyPromotionPointsThreshold   = "promotion_points_threshold"
	KeyDemotionPointsThreshold    = "demotion_points_threshold"
	KeyDemotionConsecutivePeriods = "demotion_consecutive_periods"
	KeyDismissalPointsThreshold   = "dismissal_points_threshold"
	KeyDismissalPeriods           = "dismissal_consecutive_periods"
	KeyCheckinTiers               = "checkin_tiers"
)

// MaxValue is the largest magnitude accepted for integer settings.
const MaxValue int64 = 1_000_000_000_000

type kind int

const (
	kindInt kind = iota
	kindDecimal
	kindCurrency
	kindTiers
)

type definition struct {
	Default     string
	Description string
	kind        kind
}

const defaultCheckinTiers = `[{"min":0,"max":19,"points":-20,"label":"fewer than 20 check-ins"},` +
	`{"min":20,"max":29,"points":-10,"label":"20 to 29 check-ins"},` +
	`{"min":30,"max":39,"points":0,"label":"30 to 39 check-ins"},` +
	`{"min":40,"max":49,"points":30,"label":"40 to 49 check-ins"},` +
	`{"min":50,"max":999,"points":50,"label":"50 or more check-ins"}]`

var definitions = map[string]definition{
	KeyBudgetTotal:                {"2000", "Shared pool in monetary units", kindInt},
	KeyFormalSeatCount:            {"5", "Number of formal seats", kindInt},
	KeyBaseAllocation:             {"400", "Nominal allocation per seat", kindInt},
	KeyUnitMin:                    {"200", "Minimum allocation per person", kindInt},
	KeyUnitMax:                    {"400", "Maximum allocation per person", kindInt},
	KeyPointsToUnitsRatio:         {"2", "Monetary units per point", kindInt},
	KeyUnitValue:                  {"1", "Currency value of one monetary unit", kindDecimal},
	KeyCurrency:                   {"CNY", "ISO 4217 currency code", kindCurrency},
	KeyPromotionPointsThreshold:   {"100", "Points per month an intern needs for promotion", kindInt},
	KeyDemotionPointsThreshold:    {"150", "Points per archived period below which a member becomes a demotion candidate", kindInt},
	KeyDemotionConsecutivePeriods: {"2", "Archived periods inspected for demotion", kindInt},
	KeyDismissalPointsThreshold:   {"100", "Points per month below which an intern is marked for dismissal", kindInt},
	KeyDismissalPeriods:           {"2", "Months inspected for dismissal", kindInt},
	KeyCheckinTiers:               {defaultCheckinTiers, "Check-in count to points table", kindTiers},
}

// Keys returns all known keys, sorted.
func Keys() []string {
	keys := make([]string, 0, len(definitions))
	for k := range definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the default value for every known key.
func Defaults() map[string]string {
	values := make(map[string]string, len(definitions))
	for k, d := range definitions {
		values[k] = d.Default
	}
	return values
}

// CheckinTier maps an inclusive range of monthly check-ins to points.
type CheckinTier struct {
	Min    int64  `json:"min" yaml:"min"`
	Max    int64  `json:"max" yaml:"max"`
	Points int64  `json:"points" yaml:"points"`
	Label  string `json:"label" yaml:"label"`
}

// RotationThresholds are the settings used to evaluate promotion, demotion and dismissal.
type RotationThresholds struct {
	PromotionPoints  int64
	DemotionPoints   int64
	DemotionPeriods  int
	DismissalPoints  int64
	DismissalPeriods int
}

// Settings is a typed view of all settings.
type Settings struct {
	BudgetTotal        int64
	FormalSeatCount    int64
	BaseAllocation     int64
	UnitMin            int64
	UnitMax            int64
	PointsToUnitsRatio int64
	UnitValue          decimal.Decimal
	Currency           string
	Rotation           RotationThresholds
	CheckinTiers       []CheckinTier
}

// Feasible returns an error when the per-person bounds cannot be met for the
// budget with the configured number of seats.
func (s Settings) Feasible() error {
	var problems []string

	budget := decimal.NewFromInt(s.BudgetTotal)

	if product(s.FormalSeatCount, s.UnitMin).GreaterThan(budget) {
		problems = append(problems, fmt.Sprintf("%d seats at a minimum of %d exceed the budget of %d", s.FormalSeatCount, s.UnitMin, s.BudgetTotal))
	}

	if product(s.FormalSeatCount, s.UnitMax).LessThan(budget) {
		problems = append(problems, fmt.Sprintf("%d seats at a maximum of %d cannot distribute the budget of %d", s.FormalSeatCount, s.UnitMax, s.BudgetTotal))
	}

	if len(problems) > 0 {
		return fmt.Errorf("infeasible bounds: %s", strings.Join(problems, "; "))
	}

	return nil
}

// TierFor returns the tier that contains the check-in count. Negative counts are treated as 0.
func (s Settings) TierFor(count int64) (CheckinTier, bool) {
	if count < 0 {
		count = 0
	}

	for _, t := range s.CheckinTiers {
		if count >= t.Min && count <= t.Max {
			return t, true
		}
	}

	return CheckinTier{}, false
}

// parse converts raw values into Settings. It collects a problem for every
// value it cannot parse and for every relationship between values that does not hold.
func parse(values map[string]string) (Settings, []string) {
	var problems []string
	ints := make(map[string]int64)

	for _, key := range Keys() {
		raw := strings.TrimSpace(values[key])
		if definitions[key].kind != kindInt {
			continue
		}

		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s must be an integer, got %q", key, raw))
			continue
		}

		if v > MaxValue || v < -MaxValue {
			problems = append(problems, fmt.Sprintf("%s must be between %d and %d, got %d", key, -MaxValue, MaxValue, v))
			continue
		}
		ints[key] = v
	}

	s := Settings{
		BudgetTotal:        ints[KeyBudgetTotal],
		FormalSeatCount:    ints[KeyFormalSeatCount],
		BaseAllocation:     ints[KeyBaseAllocation],
		UnitMin:            ints[KeyUnitMin],
		UnitMax:            ints[KeyUnitMax],
		PointsToUnitsRatio: ints[KeyPointsToUnitsRatio],
		Rotation: RotationThresholds{
			PromotionPoints:  ints[KeyPromotionPointsThreshold],
			DemotionPoints:   ints[KeyDemotionPointsThreshold],
			DemotionPeriods:  int(ints[KeyDemotionConsecutivePeriods]),
			DismissalPoints:  ints[KeyDismissalPointsThreshold],
			DismissalPeriods: int(ints[KeyDismissalPeriods]),
		},
	}

	unitValue, err := decimal.NewFromString(strings.TrimSpace(values[KeyUnitValue]))
	if err != nil || !unitValue.IsPositive() {
		problems = append(problems, fmt.Sprintf("%s must be a positive decimal, got %q", KeyUnitValue, values[KeyUnitValue]))
	}
	s.UnitValue = unitValue

	unit, err := currency.ParseISO(strings.TrimSpace(values[KeyCurrency]))
	if err != nil {
		problems = append(problems, fmt.Sprintf("%s must be an ISO 4217 code, got %q", KeyCurrency, values[KeyCurrency]))
	} else {
		s.Currency = unit.String()
	}

	tiers, err := parseTiers(values[KeyCheckinTiers])
	if err != nil {
		problems = append(problems, fmt.Sprintf("%s: %s", KeyCheckinTiers, err))
	}
	s.CheckinTiers = tiers

	// Relationships can only be checked when all numbers are known
	if len(ints) != countKind(kindInt) {
		return s, problems
	}

	if s.FormalSeatCount < 1 {
		problems = append(problems, fmt.Sprintf("%s must be at least 1, got %d", KeyFormalSeatCount, s.FormalSeatCount))
	}

	for _, key := range []string{KeyBudgetTotal, KeyBaseAllocation, KeyUnitMin, KeyPointsToUnitsRatio, KeyPromotionPointsThreshold, KeyDemotionPointsThreshold, KeyDismissalPointsThreshold} {
		if ints[key] < 0 {
			problems = append(problems, fmt.Sprintf("%s must not be negative, got %d", key, ints[key]))
		}
	}

	for _, key := range []string{KeyDemotionConsecutivePeriods, KeyDismissalPeriods} {
		if ints[key] < 1 {
			problems = append(problems, fmt.Sprintf("%s must be at least 1, got %d", key, ints[key]))
		}
	}

	if s.UnitMin > s.UnitMax {
		problems = append(problems, fmt.Sprintf("%s (%d) must not be greater than %s (%d)", KeyUnitMin, s.UnitMin, KeyUnitMax, s.UnitMax))
	}

	if product(s.BaseAllocation, s.FormalSeatCount).GreaterThan(decimal.NewFromInt(s.BudgetTotal)) {
		problems = append(problems, fmt.Sprintf("%s (%d) times %s (%d) exceeds %s (%d)", KeyBaseAllocation, s.BaseAllocation, KeyFormalSeatCount, s.FormalSeatCount, KeyBudgetTotal, s.BudgetTotal))
	}

	if s.UnitMin <= s.UnitMax {
		if err := s.Feasible(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	return s, problems
}

// product returns a * b without overflowing.
func product(a, b int64) decimal.Decimal {
	return decimal.NewFromInt(a).Mul(decimal.NewFromInt(b))
}

func countKind(k kind) int {
	n := 0
	for _, d := range definitions {
		if d.kind == k {
			n++
		}
	}
	return n
}

func parseTiers(raw string) ([]CheckinTier, error) {
	var tiers []CheckinTier
	if err := json.Unmarshal([]byte(raw), &tiers); err != nil {
		return nil, fmt.Errorf("invalid tier table: %w", err)
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Min < tiers[j].Min })

	for i, t := range tiers {
		if t.Min < 0 || t.Min > t.Max {
			return nil, fmt.Errorf("tier %d has an invalid range %d-%d", i, t.Min, t.Max)
		}

		if i > 0 && t.Min <= tiers[i-1].Max {
			return nil, fmt.Errorf("tiers %d-%d and %d-%d overlap", tiers[i-1].Min, tiers[i-1].Max, t.Min, t.Max)
		}
	}

	return tiers, nil
}
