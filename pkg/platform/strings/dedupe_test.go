package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{name: "nil slice", input: nil, expected: nil},
		{name: "empty slice", input: []string{}, expected: []string{}},
		{name: "trims whitespace", input: []string{"  foo  ", "bar  "}, expected: []string{"foo", "bar"}},
		{name: "removes duplicates preserving order", input: []string{"foo", "bar", "foo"}, expected: []string{"foo", "bar"}},
		{name: "drops blanks", input: []string{"", "  ", "foo"}, expected: []string{"foo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("", ","))
	assert.Nil(t, SplitList("   ", ","))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, SplitList(" kafka-1:9092, kafka-2:9092,,kafka-1:9092", ","))
}
