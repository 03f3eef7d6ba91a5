package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampMemoryBudget(t *testing.T) {
	cases := []struct {
		name    string
		totalMB int
		want    int
	}{
		{"probe failed", 0, 512},
		{"large machine takes 75%", 16384, 12288},
		{"small machine floors at 512", 600, 512},
		{"tiny machine keeps what it has", 256, 256},
		{"floor boundary", 512, 512},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, clampMemoryBudget(tc.totalMB))
		})
	}
}

func TestHistoryMemoryBudgetAlwaysPositive(t *testing.T) {
	assert.Positive(t, HistoryMemoryBudgetMB())
}
