package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeTrimmer struct {
	cutoff  int64
	removed int64
	err     error
	calls   int
}

func (f *fakeTrimmer) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.removed, f.err
}

type fakeDecayer struct {
	calls int
}

func (f *fakeDecayer) DecayFrequencies() {
	f.calls++
}

func TestTrimRewardsUsesRetentionWindow(t *testing.T) {
	trimmer := &fakeTrimmer{removed: 3}
	m := New(trimmer, &fakeDecayer{}, zap.NewNop().Sugar())

	before := time.Now().AddDate(0, 0, -m.retentionDays).Unix()
	m.trimRewards()
	after := time.Now().AddDate(0, 0, -m.retentionDays).Unix()

	assert.Equal(t, 1, trimmer.calls)
	assert.GreaterOrEqual(t, trimmer.cutoff, before)
	assert.LessOrEqual(t, trimmer.cutoff, after)
}

func TestRetentionOverride(t *testing.T) {
	t.Setenv("TRANE_REWARD_RETENTION_DAYS", "7")
	m := New(&fakeTrimmer{}, &fakeDecayer{}, zap.NewNop().Sugar())
	assert.Equal(t, 7, m.retentionDays)

	t.Setenv("TRANE_REWARD_RETENTION_DAYS", "junk")
	m = New(&fakeTrimmer{}, &fakeDecayer{}, zap.NewNop().Sugar())
	assert.Equal(t, DefaultRewardRetentionDays, m.retentionDays)
}

func TestDecayFrequencies(t *testing.T) {
	decayer := &fakeDecayer{}
	m := New(&fakeTrimmer{}, decayer, zap.NewNop().Sugar())
	m.decayFrequencies()
	assert.Equal(t, 1, decayer.calls)
}
