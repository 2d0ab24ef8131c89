package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupees formats amount with Indian digit grouping.
// Example: 1234567.5 -> "Rs.12,34,567.50"; 100 -> "Rs.100"
func FormatRupees(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	intPart := d.Truncate(0).String()
	frac := d.Sub(d.Truncate(0))

	out := groupIndian(intPart)
	if !frac.IsZero() {
		out += "." + strings.TrimPrefix(frac.StringFixed(2), "0.")
	}
	return sign + "Rs." + out
}

// groupIndian puts a comma after the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}
	return strings.Join(parts, ",") + "," + tail
}
