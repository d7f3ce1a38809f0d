package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResendPolicy_Cooldown(t *testing.T) {
	p := ResendPolicy{Base: 30 * time.Second, Max: 4 * time.Minute}

	tests := []struct {
		resends int
		want    time.Duration
	}{
		{0, 30 * time.Second},
		{1, 60 * time.Second},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{4, 4 * time.Minute}, // capped
		{10, 4 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Cooldown(tt.resends), "resends=%d", tt.resends)
	}
}

func TestResendPolicy_NextEligible(t *testing.T) {
	p := ResendPolicy{Base: 30 * time.Second, Max: 4 * time.Minute}
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, sentAt.Add(30*time.Second), p.NextEligible(sentAt, 0))
	assert.Equal(t, sentAt.Add(2*time.Minute), p.NextEligible(sentAt, 2))
}
