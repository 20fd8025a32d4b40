package core

import "slices"

// ExceededThresholds returns every threshold t with spentAbs >= t, ascending
// and without duplicates. Thresholds are assumed validated upstream.
func ExceededThresholds(spentAbs int, thresholds []int) []int {
	var out []int
	for _, t := range thresholds {
		if spentAbs >= t {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
