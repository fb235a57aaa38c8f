package rebalancing

import (
	"testing"
	"time"

	testingpkg "github.com/aristath/rebalancer/internal/testing"
	"github.com/stretchr/testify/assert"
)

func TestAlertCooldown(t *testing.T) {
	cooldown := NewAlertCooldown(15 * time.Minute)
	now := testingpkg.FixedTime

	assert.False(t, cooldown.CanAlert(now, false), "no credentials, no alert")
	assert.True(t, cooldown.CanAlert(now, true))

	cooldown.Record(now)
	assert.Equal(t, now, cooldown.LastAlert())
	assert.False(t, cooldown.CanAlert(now.Add(time.Minute), true))
	assert.False(t, cooldown.CanAlert(now.Add(15*time.Minute), true), "boundary is exclusive")
	assert.True(t, cooldown.CanAlert(now.Add(15*time.Minute+time.Millisecond), true))
}

func TestAlertCooldown_DefaultPeriod(t *testing.T) {
	assert.Equal(t, DefaultAlertCooldown, NewAlertCooldown(0).Period())
	assert.Equal(t, time.Minute, NewAlertCooldown(time.Minute).Period())
}
