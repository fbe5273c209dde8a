package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeWeekday(t *testing.T) {
	cases := []struct {
		name  string
		input interface{}
		want  int
		ok    bool
	}{
		{"int", 3, 3, true},
		{"int64", int64(5), 5, true},
		{"float", float64(1), 1, true},
		{"fractional float", 1.5, 0, false},
		{"numeric string", "4", 4, true},
		{"padded numeric string", " 2 ", 2, true},
		{"lunes", "lunes", 1, true},
		{"uppercase", "MARTES", 2, true},
		{"accented miercoles", "miércoles", 3, true},
		{"plain miercoles", "miercoles", 3, true},
		{"jueves", "Jueves", 4, true},
		{"viernes", "viernes", 5, true},
		{"accented sabado", "sábado", 6, true},
		{"domingo", "domingo", 0, true},
		{"out of range", 7, 0, false},
		{"negative", -1, 0, false},
		{"unknown name", "funday", 0, false},
		{"empty string", "", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeWeekday(tc.input)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestNormalizeWeekdays(t *testing.T) {
	days := NormalizeWeekdays([]interface{}{"lunes", 3, "miércoles", "bogus", float64(5), "lunes"})
	assert.Equal(t, []int{1, 3, 5}, days)
}

func TestNormalizeWeekdaysEmpty(t *testing.T) {
	assert.Empty(t, NormalizeWeekdays(nil))
	assert.Empty(t, NormalizeWeekdays([]interface{}{"x", 9}))
}
