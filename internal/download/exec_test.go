package download

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePercent(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		want  int
		found bool
	}{
		{"wget dot line", "  3250K ........ ........ 42% 1.2M 4m30s", 42, true},
		{"curl progress bar", "###########                     37.5%", 37, true},
		{"hundred", "100%", 100, true},
		{"fractional truncates", "99.9%", 99, true},
		{"first match wins", "10% then 90%", 10, true},
		{"no percent", "Resolving huggingface.co...", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := parsePercent(tt.line)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransferEstimates(t *testing.T) {
	// 50% of a 4 GB artifact in 100 seconds: 2048 MB down at 20.48 MB/s,
	// 2048 MB to go, about 100 seconds remaining.
	speed, eta := transferEstimates(50, 4, 100*time.Second)
	assert.InDelta(t, 20.48, speed, 0.01)
	assert.Equal(t, 100, eta)
}

func TestTransferEstimates_ZeroElapsed(t *testing.T) {
	speed, eta := transferEstimates(50, 4, 0)
	assert.Zero(t, speed)
	assert.Zero(t, eta)
}

func TestTransferEstimates_ZeroProgress(t *testing.T) {
	speed, eta := transferEstimates(0, 4, 10*time.Second)
	assert.Zero(t, speed)
	assert.Zero(t, eta)
}
