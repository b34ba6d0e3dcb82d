package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{" , ,", []string{}},
		{"kafka-1:9092", []string{"kafka-1:9092"}},
		{" kafka-1:9092 ,kafka-2:9092,kafka-1:9092", []string{"kafka-1:9092", "kafka-2:9092"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitList(tt.in), "input %q", tt.in)
	}
}
