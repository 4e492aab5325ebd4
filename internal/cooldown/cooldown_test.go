package cooldown

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lonelycare/internal/alert"
	"lonelycare/pkg/cache"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock { return &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)} }

func TestConfig_Window(t *testing.T) {
	assert.Equal(t, 2*time.Hour, Config{}.Window())
	assert.Equal(t, 3*time.Hour, Config{Duration: 3 * time.Hour}.Window())
	assert.Equal(t, time.Minute, Config{Duration: 3 * time.Hour, Diagnostic: true}.Window())
	assert.Equal(t, 10*time.Second, Config{Diagnostic: true, DiagnosticDuration: 10 * time.Second}.Window())
}

func TestCooldown_ShouldSendIdempotent(t *testing.T) {
	clk := newClock()
	cd := New(Config{}, nil, clk.now, nil)

	for i := 0; i < 3; i++ {
		assert.True(t, cd.ShouldSend("b", alert.Warning))
	}
	cd.MarkSent(context.Background(), "b", alert.Warning)
	for i := 0; i < 3; i++ {
		assert.False(t, cd.ShouldSend("b", alert.Warning))
	}
}

func TestCooldown_WindowElapses(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	cd := New(Config{Duration: 2 * time.Hour}, nil, clk.now, nil)

	cd.MarkSent(ctx, "b", alert.Warning)
	clk.advance(5 * time.Minute)
	assert.False(t, cd.ShouldSend("b", alert.Warning))
	// 其他等级、其他联系人互不影响
	assert.True(t, cd.ShouldSend("b", alert.Danger))
	assert.True(t, cd.ShouldSend("c", alert.Warning))

	clk.advance(2*time.Hour - 5*time.Minute - time.Second)
	assert.False(t, cd.ShouldSend("b", alert.Warning))
	clk.advance(time.Second)
	assert.True(t, cd.ShouldSend("b", alert.Warning))
}

func TestCooldown_UnmarkedFailureStaysOpen(t *testing.T) {
	clk := newClock()
	cd := New(Config{}, nil, clk.now, nil)

	require.True(t, cd.ShouldSend("b", alert.Danger))
	// 投递失败时不调用 MarkSent，下一轮立即重试
	assert.True(t, cd.ShouldSend("b", alert.Danger))
	assert.Empty(t, cd.Records())
}

func TestCooldown_Resets(t *testing.T) {
	ctx := context.Background()
	cd := New(Config{}, nil, newClock().now, nil)

	cd.MarkSent(ctx, "b", alert.Warning)
	cd.MarkSent(ctx, "b", alert.Danger)
	cd.MarkSent(ctx, "c", alert.Warning)

	cd.Reset(ctx, "b", alert.Warning)
	assert.True(t, cd.ShouldSend("b", alert.Warning))
	assert.False(t, cd.ShouldSend("b", alert.Danger))

	cd.ResetContact(ctx, "b")
	assert.True(t, cd.ShouldSend("b", alert.Danger))
	assert.False(t, cd.ShouldSend("c", alert.Warning))

	cd.ResetAll(ctx)
	assert.True(t, cd.ShouldSend("c", alert.Warning))
	assert.Empty(t, cd.Records())
}

func TestCooldown_FlapGuard(t *testing.T) {
	ctx := context.Background()
	clk := newClock()

	guarded := New(Config{SuppressFlap: true}, nil, clk.now, nil)
	guarded.MarkSent(ctx, "b", alert.Danger)
	assert.False(t, guarded.ShouldSend("b", alert.Warning))
	assert.True(t, guarded.ShouldSend("b", alert.Emergency))

	clk.advance(2 * time.Hour)
	assert.True(t, guarded.ShouldSend("b", alert.Warning))

	plain := New(Config{}, nil, clk.now, nil)
	plain.MarkSent(ctx, "b", alert.Danger)
	assert.True(t, plain.ShouldSend("b", alert.Warning))
}

func TestCooldown_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	path := filepath.Join(t.TempDir(), "snapshot")

	c1 := cache.NewGoCache(cache.LocalConfig{SnapshotPath: path})
	first := New(Config{}, c1, clk.now, nil)
	first.MarkSent(ctx, "b", alert.Emergency)
	require.NoError(t, c1.Close())

	c2 := cache.NewGoCache(cache.LocalConfig{SnapshotPath: path})
	defer c2.Close()
	second := New(Config{}, c2, clk.now, nil)
	require.NoError(t, second.Load(ctx))

	assert.False(t, second.ShouldSend("b", alert.Emergency))
	recs := second.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, alert.Emergency, recs[0].Tier)
}
