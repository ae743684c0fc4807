package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
		ok    bool
	}{
		// Canonical names
		{"Verbose", Verbose, true}, {"Debug", Debug, true}, {"Information", Information, true},
		{"Warning", Warning, true}, {"Error", Error, true}, {"Fatal", Fatal, true},
		// Variants
		{"TRACE", Verbose, true}, {"VRB", Verbose, true},
		{"DBG", Debug, true}, {"INFO", Information, true}, {"INF", Information, true},
		{"WARN", Warning, true}, {"WRN", Warning, true},
		{"ERR", Error, true}, {"ERRO", Error, true},
		{"CRITICAL", Fatal, true}, {"PANIC", Fatal, true}, {"FTL", Fatal, true},
		// Case and whitespace
		{"error", Error, true}, {"  warning  ", Warning, true},
		// Unknown
		{"", Verbose, false}, {"loud", Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeLevel_DefaultsToInformation(t *testing.T) {
	assert.Equal(t, Information, NormalizeLevel(""))
	assert.Equal(t, Information, NormalizeLevel("whatever"))
	assert.Equal(t, Error, NormalizeLevel("ERR"))
}

func TestLevelOrderingAndNames(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		assert.Less(t, Levels[i-1], Levels[i])
	}
	assert.Equal(t, "Information", Information.String())
	assert.Equal(t, "Unknown", Level(42).String())
	assert.False(t, Level(-1).Valid())
}

func TestDateFilterWindow(t *testing.T) {
	amount, unit, err := Last4Hours.Window()
	assert.NoError(t, err)
	assert.Equal(t, 4, amount)
	assert.Equal(t, Hour, unit)

	_, _, err = DateFilter("3y").Window()
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}
