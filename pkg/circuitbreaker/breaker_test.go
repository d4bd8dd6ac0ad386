package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutePassesThrough(t *testing.T) {
	cb, err := New(DefaultConfig("test"), nil)
	require.NoError(t, err)

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestExecutePropagatesErrors(t *testing.T) {
	cb, err := New(DefaultConfig("test"), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := Config{
		Name:             "test",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		FailureRatio:     0.6,
		MinRequests:      100,
	}
	cb, err := New(cfg, nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		})
	}

	assert.True(t, cb.IsOpen())

	_, err = cb.Execute(context.Background(), func() (interface{}, error) {
		t.Fatal("must not run while open")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
}
