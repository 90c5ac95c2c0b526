package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetry(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		cfg       Config
		wantTimes int
		wantErr   bool
	}{
		{name: "默认配置", cfg: DefaultConfig(), wantTimes: 2},
		{
			name:      "固定间隔",
			cfg:       Config{Type: TypeFixed, FixedInterval: &FixedIntervalConfig{MaxRetries: 3, Interval: 10}},
			wantTimes: 3,
		},
		{name: "缺少配置", cfg: Config{Type: TypeExponential}, wantErr: true},
		{name: "未知类型", cfg: Config{Type: "linear"}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, err := NewRetry(tc.cfg)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			times := 0
			for {
				d, ok := s.Next()
				if !ok {
					break
				}
				assert.Greater(t, d, time.Duration(0))
				times++
			}
			assert.Equal(t, tc.wantTimes, times)
		})
	}
}

func TestDefaultConfigIsCapped(t *testing.T) {
	t.Parallel()

	s, err := NewRetry(DefaultConfig())
	require.NoError(t, err)
	for {
		d, ok := s.Next()
		if !ok {
			break
		}
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}
