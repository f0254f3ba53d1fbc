package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrigger struct {
	calls atomic.Int32
}

func (c *countingTrigger) Refetch(context.Context) bool {
	c.calls.Add(1)
	return true
}

func TestNew_RejectsInvalidSpec(t *testing.T) {
	_, err := New("every now and then", &countingTrigger{})

	assert.ErrorContains(t, err, "invalid refresh schedule")
}

func TestNew_AcceptsStandardAndDescriptors(t *testing.T) {
	for _, spec := range []string{"*/15 * * * *", "@hourly", "@every 15m"} {
		_, err := New(spec, &countingTrigger{})
		assert.NoError(t, err, spec)
	}
}

func TestStart_TriggersRefresh(t *testing.T) {
	trigger := &countingTrigger{}
	s, err := New("@every 1s", trigger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	assert.False(t, s.Next().IsZero())

	require.Eventually(t, func() bool { return trigger.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
}
