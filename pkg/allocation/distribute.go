package allocation

import (
	"github.com/shopspring/decimal"
)

// Distribute splits budget across holders in proportion to their raw amounts.
// The result always sums up to budget exactly.
//
// If the raw amounts sum to zero or less, the budget is split evenly and the
// remainder goes to the first holders, one unit each. Otherwise every holder
// receives floor(raw * budget / sum) and the last holder receives what is left.
func Distribute(raw []int64, budget int64) []int64 {
	n := len(raw)
	amounts := make([]int64, n)
	if n == 0 {
		return amounts
	}

	total := decimal.Zero
	for _, r := range raw {
		total = total.Add(decimal.NewFromInt(r))
	}

	if !total.IsPositive() {
		share := budget / int64(n)
		remainder := budget % int64(n)
		for i := range amounts {
			amounts[i] = share
			if int64(i) < remainder {
				amounts[i]++
			}
		}
		return amounts
	}

	b := decimal.NewFromInt(budget)

	var allocated int64
	for i := 0; i < n-1; i++ {
		amounts[i] = floorDiv(decimal.NewFromInt(raw[i]).Mul(b), total)
		allocated += amounts[i]
	}
	amounts[n-1] = budget - allocated

	return amounts
}

// floorDiv returns floor(a / b) for b > 0.
func floorDiv(a, b decimal.Decimal) int64 {
	q, r := a.QuoRem(b, 0)
	if r.IsNegative() {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.IntPart()
}

// EnforceBounds moves amounts into [min, max] while keeping their sum.
//
// Each pass clamps amounts above max and raises amounts below min. The
// difference between the surplus and the deficit is then spread evenly over
// the holders that can still take it, the remainder one unit each to the
// first of them. A pass that moves nothing ends the loop, as does a pass
// without anyone to give to or take from. The number of passes is bounded by
// twice the number of holders.
//
// For inputs where len * min <= sum <= len * max every result lies in the
// bounds. Other inputs are returned best effort.
func EnforceBounds(amounts []int64, min, max int64) []int64 {
	out := make([]int64, len(amounts))
	copy(out, amounts)

	for pass := 0; pass < 2*len(out); pass++ {
		var surplus, deficit int64
		for i, a := range out {
			switch {
			case a > max:
				surplus += a - max
				out[i] = max
			case a < min:
				deficit += min - a
				out[i] = min
			}
		}

		if surplus == 0 && deficit == 0 {
			break
		}

		net := surplus - deficit
		if net == 0 {
			continue
		}

		if net > 0 {
			recipients := indexes(out, func(a int64) bool { return a < max })
			if len(recipients) == 0 {
				restore(out, net)
				break
			}
			spread(out, recipients, net)
		} else {
			donors := indexes(out, func(a int64) bool { return a > min })
			if len(donors) == 0 {
				restore(out, net)
				break
			}
			spread(out, donors, net)
		}
	}

	return out
}

func indexes(amounts []int64, match func(int64) bool) []int {
	var idx []int
	for i, a := range amounts {
		if match(a) {
			idx = append(idx, i)
		}
	}
	return idx
}

// spread adds delta evenly over the given positions, the remainder one unit
// each to the first positions. delta may be negative.
func spread(amounts []int64, positions []int, delta int64) {
	n := int64(len(positions))
	share := delta / n
	remainder := delta % n

	sign := int64(1)
	if remainder < 0 {
		sign = -1
		remainder = -remainder
	}

	for i, p := range positions {
		amounts[p] += share
		if int64(i) < remainder {
			amounts[p] += sign
		}
	}
}

// restore puts an amount that cannot be placed within the bounds back on the
// last holder so that the sum is kept.
func restore(amounts []int64, delta int64) {
	if len(amounts) > 0 {
		amounts[len(amounts)-1] += delta
	}
}
