package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := map[string]time.Time{
		"2024-10-10T10:10:10Z":      want,
		"2024-10-10T12:10:10+02:00": want,
		"2024-10-10 10:10:10":       want,
		"2024-10-10T10:10:10":       want,
		"1728555010":                want,
		"1728555010000":             want,
		"2024-10-10":                time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC),
	}
	for in, exp := range cases {
		got, ok := ParseTime(in)
		if assert.True(t, ok, in) {
			assert.True(t, exp.Equal(got), "%s: got %v", in, got)
		}
	}

	for _, bad := range []string{"", "  ", "0", "-5", "yesterday", "10/10/2024"} {
		_, ok := ParseTime(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Unix(42, 0)
	assert.Equal(t, def, ParseTimeDefault("nope", def))
	assert.Equal(t, int64(1728555010), ParseTimeDefault("1728555010", def).Unix())
}
