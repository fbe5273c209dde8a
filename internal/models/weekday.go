package models

import (
	"strconv"
	"strings"
)

// Visit days use 0 (Sunday) through 6 (Saturday), matching time.Weekday.
// Legacy records store them either as numbers or as Spanish day names, with
// inconsistent casing and accents, so normalization has to accept all of it.
var spanishWeekdays = map[string]int{
	"domingo":   0,
	"lunes":     1,
	"martes":    2,
	"miercoles": 3,
	"jueves":    4,
	"viernes":   5,
	"sabado":    6,
}

// NormalizeWeekday maps a raw visit-day value to 0..6. The second return is
// false when the value is not recognized; such values are dropped by callers.
func NormalizeWeekday(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case int:
		return weekdayInRange(v)
	case int64:
		return weekdayInRange(int(v))
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return weekdayInRange(int(v))
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, false
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			return weekdayInRange(n)
		}
		name := stripDiacritics(strings.ToLower(trimmed))
		if day, ok := spanishWeekdays[name]; ok {
			return day, true
		}
		return 0, false
	default:
		return 0, false
	}
}

// NormalizeWeekdays normalizes a raw list, dropping unrecognized values and
// duplicates. The result preserves first-occurrence order.
func NormalizeWeekdays(raw []interface{}) []int {
	seen := make(map[int]struct{}, len(raw))
	days := make([]int, 0, len(raw))
	for _, value := range raw {
		day, ok := NormalizeWeekday(value)
		if !ok {
			continue
		}
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	return days
}

func weekdayInRange(n int) (int, bool) {
	if n < 0 || n > 6 {
		return 0, false
	}
	return n, true
}

func stripDiacritics(s string) string {
	replacer := strings.NewReplacer(
		"á", "a",
		"é", "e",
		"í", "i",
		"ó", "o",
		"ú", "u",
		"ü", "u",
	)
	return replacer.Replace(s)
}
