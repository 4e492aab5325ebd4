package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lonelycare/pkg/errors"
	"lonelycare/pkg/i18n"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ago(minutes int) *time.Time {
	t := now.Add(-time.Duration(minutes) * time.Minute)
	return &t
}

func TestClassify_Boundaries(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name    string
		elapsed int
		want    Tier
	}{
		{"fresh", 0, Normal},
		{"just below warning", th.Warning - 1, Normal},
		{"at warning", th.Warning, Warning},
		{"30 hours", 30 * 60, Warning},
		{"at danger", th.Danger, Danger},
		{"50 hours", 50 * 60, Danger},
		{"just below emergency", th.Emergency - 1, Danger},
		{"at emergency", th.Emergency, Emergency},
		{"73 hours", 73 * 60, Emergency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(ago(tt.elapsed), th, now))
		})
	}
}

func TestClassify_NilIsNormal(t *testing.T) {
	assert.Equal(t, Normal, Classify(nil, DefaultThresholds(), now))
	assert.Equal(t, Normal, Classify(nil, Thresholds{Warning: 1, Danger: 2, Emergency: 3}, now))
}

func TestClassify_FutureTimestampClampsToZero(t *testing.T) {
	future := now.Add(time.Hour)
	assert.Equal(t, Normal, Classify(&future, DefaultThresholds(), now))
	assert.Equal(t, int64(0), ElapsedMinutes(future, now))
}

func TestClassify_Monotonic(t *testing.T) {
	th := Thresholds{Warning: 10, Danger: 20, Emergency: 30}
	prev := Normal
	for m := 0; m <= 40; m++ {
		got := Classify(ago(m), th, now)
		assert.GreaterOrEqual(t, int(got), int(prev), "elapsed=%d", m)
		prev = got
	}
	assert.Equal(t, Emergency, prev)
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())

	for _, th := range []Thresholds{
		{Warning: 100, Danger: 50, Emergency: 200},
		{Warning: 100, Danger: 100, Emergency: 200},
		{Warning: 100, Danger: 200, Emergency: 200},
		{Warning: 0, Danger: 200, Emergency: 300},
		{},
	} {
		err := th.Validate()
		require.Error(t, err, "%+v", th)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidConfig))
	}
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers() {
		got, err := ParseTier(tier.String())
		require.NoError(t, err)
		assert.Equal(t, tier, got)
	}
	got, err := ParseTier(" Emergency ")
	require.NoError(t, err)
	assert.Equal(t, Emergency, got)

	_, err = ParseTier("critical")
	assert.Error(t, err)
}

func TestManager_UsesInjectedClock(t *testing.T) {
	m := NewManager(func() time.Time { return now })
	assert.Equal(t, Warning, m.Classify(ago(30*60), DefaultThresholds()))

	mins, ok := m.ElapsedMinutes(ago(90))
	assert.True(t, ok)
	assert.Equal(t, int64(90), mins)

	_, ok = m.ElapsedMinutes(nil)
	assert.False(t, ok)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "just now", FormatElapsed(0))
	assert.Equal(t, "1 minute ago", FormatElapsed(1))
	assert.Equal(t, "59 minutes ago", FormatElapsed(59))
	assert.Equal(t, "1 hour ago", FormatElapsed(60))
	assert.Equal(t, "23 hours ago", FormatElapsed(1439))
	assert.Equal(t, "1 day ago", FormatElapsed(1440))
	assert.Equal(t, "3 days ago", FormatElapsed(73*60))
}

func TestFormatter_Korean(t *testing.T) {
	tr, err := i18n.NewI18nSupport("en")
	require.NoError(t, err)
	require.NoError(t, RegisterMessages(tr))
	f := NewFormatter(tr)

	assert.Equal(t, "방금 전", f.Format("ko", 0))
	assert.Equal(t, "5분 전", f.Format("ko", 5))
	assert.Equal(t, "2시간 전", f.Format("ko", 120))
	// 未支持的语言按默认语言输出
	assert.Equal(t, "2 days ago", f.Format("de", 2*1440))
}
