package submit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotices_ExpireAfterTTL(t *testing.T) {
	n := NewNotices(20 * time.Millisecond)

	n.Warn("check the phone number")
	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "check the phone number", got.Message)

	assert.Eventually(t, func() bool {
		_, ok := n.Current()
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestNotices_NewerWarningSurvivesOlderTimer(t *testing.T) {
	n := NewNotices(60 * time.Millisecond)

	n.Warn("first")
	time.Sleep(40 * time.Millisecond)
	seq := n.Warn("second")
	time.Sleep(40 * time.Millisecond)

	// The first warning's deadline has passed; the second is still fresh.
	got, ok := n.Current()
	require.True(t, ok)
	assert.Equal(t, "second", got.Message)
	assert.Equal(t, seq, got.Seq)
}

func TestNotices_Dismiss(t *testing.T) {
	n := NewNotices(time.Minute)
	n.Warn("x")
	n.Dismiss()
	_, ok := n.Current()
	assert.False(t, ok)
}

func TestNotices_DefaultTTL(t *testing.T) {
	n := NewNotices(0)
	assert.Equal(t, DefaultNoticeTTL, n.ttl)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "queued_offline", QueuedOffline.String())
	assert.Equal(t, "unknown", Phase(42).String())
	assert.True(t, Succeeded.Terminal())
	assert.False(t, Submitting.Terminal())
}
