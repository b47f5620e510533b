package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatMoney renders a dollar amount with thousands separators.
func FormatMoney(v float64) string {
	neg := v < 0
	s := fmt.Sprintf("%.2f", math.Abs(v))
	parts := strings.SplitN(s, ".", 2)
	whole := parts[0]

	var sb strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}

	out := "$" + sb.String() + "." + parts[1]
	if neg {
		out = "-" + out
	}
	return out
}

// FormatPercent renders a percentage with two decimals, or "Inf" for
// infinite ratios.
func FormatPercent(v float64) string {
	if math.IsInf(v, 1) {
		return "Inf"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}
	return fmt.Sprintf("%.2f%%", v)
}

// FormatRatio renders a unitless ratio with two decimals, or "Inf".
func FormatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "Inf"
	}
	return fmt.Sprintf("%.2f", v)
}
