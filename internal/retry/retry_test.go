package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errFlaky = errors.New("flaky upstream")

// recordSleep collects requested delays without waiting.
func recordSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func newTestExecutor(t *testing.T, cfg Config, delays *[]time.Duration) *Executor {
	t.Helper()
	return NewExecutor(cfg,
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithSleep(recordSleep(delays)),
	)
}

func testConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
		Retryable:       On(errFlaky),
	}
}

func TestDelay_ExponentialSequence(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, 1*time.Second, Delay(0, cfg))
	assert.Equal(t, 2*time.Second, Delay(1, cfg))
	assert.Equal(t, 4*time.Second, Delay(2, cfg))
}

func TestDelay_CappedByMaxDelay(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDelay = 3 * time.Second

	assert.Equal(t, 2*time.Second, Delay(1, cfg))
	assert.Equal(t, 3*time.Second, Delay(2, cfg))
	assert.Equal(t, 3*time.Second, Delay(5000, cfg))
}

func TestDelay_NonDecreasingAndBounded(t *testing.T) {
	configs := []Config{
		testConfig(),
		{InitialDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, ExponentialBase: 1},
		{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Minute, ExponentialBase: 1.5},
		{InitialDelay: 2 * time.Second, MaxDelay: time.Second, ExponentialBase: 3},
		LLMConfig,
		NetworkConfig,
	}

	for _, cfg := range configs {
		prev := time.Duration(0)
		for attempt := 0; attempt < 200; attempt++ {
			d := Delay(attempt, cfg)
			assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
			assert.LessOrEqual(t, d, cfg.MaxDelay, "attempt %d", attempt)
			prev = d
		}
	}
}

func TestRun_SuccessOnFirstAttempt(t *testing.T) {
	var delays []time.Duration
	ex := newTestExecutor(t, testConfig(), &delays)

	calls := 0
	err := ex.Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRun_FailsTwiceThenSucceeds(t *testing.T) {
	var delays []time.Duration
	ex := newTestExecutor(t, testConfig(), &delays)

	calls := 0
	got, err := Do(context.Background(), ex, "op", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errFlaky
		}
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRun_AlwaysFailsExhausts(t *testing.T) {
	var delays []time.Duration
	ex := newTestExecutor(t, testConfig(), &delays)

	calls := 0
	err := ex.Run(context.Background(), "research", func(ctx context.Context) error {
		calls++
		return errors.Wrapf(errFlaky, "call %d", calls)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 3, exhausted.Attempts)
	assert.False(t, exhausted.Permanent)
	assert.Equal(t, "research", exhausted.Label)
	assert.Contains(t, exhausted.Last.Error(), "call 3")
	assert.True(t, errors.Is(err, errFlaky))
	assert.Len(t, delays, 2)
}

func TestRun_NonRetryableStopsImmediately(t *testing.T) {
	var delays []time.Duration
	ex := newTestExecutor(t, testConfig(), &delays)

	boom := errors.New("bad request")
	calls := 0
	err := ex.Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return boom
	})

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.True(t, exhausted.Permanent)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
	assert.True(t, errors.Is(err, boom))
}

func TestRun_SingleAttemptMeansNoRetry(t *testing.T) {
	var delays []time.Duration
	cfg := testConfig()
	cfg.MaxAttempts = 1
	ex := newTestExecutor(t, cfg, &delays)

	calls := 0
	err := ex.Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return errFlaky
	})

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Empty(t, delays)
}

func TestRun_DefaultPredicateRetriesOnlyTransient(t *testing.T) {
	var delays []time.Duration
	cfg := testConfig()
	cfg.Retryable = nil
	ex := newTestExecutor(t, cfg, &delays)

	calls := 0
	err := ex.Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return Transient(errors.New("timeout"))
		}
		return errors.New("programmer error")
	})

	var exhausted *ExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 2, calls)
	assert.True(t, exhausted.Permanent)
	assert.Len(t, delays, 1)
}

func TestRun_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := testConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour
	ex := NewExecutor(cfg, WithLogger(zaptest.NewLogger(t).Sugar()))

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := ex.Run(ctx, "op", func(ctx context.Context) error {
		calls++
		cancel()
		return errFlaky
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestTransient(t *testing.T) {
	assert.Nil(t, Transient(nil))

	base := errors.New("503")
	marked := Transient(base)
	assert.True(t, IsTransient(marked))
	assert.True(t, errors.Is(marked, base))
	assert.False(t, IsTransient(base))
}
