package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderNumberPrefix returns the prefix shared by every order number of year.
func OrderNumberPrefix(year int) string {
	return fmt.Sprintf("ORD-%d-", year)
}

// FormatOrderNumber renders ORD-<year>-<seq>, padding seq to four digits.
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", OrderNumberPrefix(year), seq)
}

// ParseOrderSequence extracts the sequence from an order number issued in
// year. It reports false for numbers from other years or malformed suffixes.
func ParseOrderSequence(number string, year int) (int, bool) {
	suffix, ok := strings.CutPrefix(number, OrderNumberPrefix(year))
	if !ok || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// NextSequence is one more than the highest sequence among numbers issued
// in year, or 1 when there are none.
func NextSequence(numbers []string, year int) int {
	highest := 0
	for _, number := range numbers {
		if seq, ok := ParseOrderSequence(number, year); ok && seq > highest {
			highest = seq
		}
	}
	return highest + 1
}
