package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassString(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "invalid", ClassInvalid.String())
	assert.Equal(t, "fatal", ClassFatal.String())
	assert.Equal(t, "unknown", Class(99).String())
}

func TestWrapPattern(t *testing.T) {
	base := New("connection refused")
	err := Wrap(base, "Provider", "Embed", "upstream call")
	require.Error(t, err)
	assert.Equal(t, "Provider.Embed: upstream call failed: connection refused", err.Error())
	assert.True(t, Is(err, base))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "c", "m", "a"))
	assert.NoError(t, WrapTransient(nil, "c", "m", "a"))
	assert.NoError(t, WrapInvalid(nil, "c", "m", "a"))
	assert.NoError(t, WrapFatal(nil, "c", "m", "a"))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"provider unavailable", ErrProviderUnavailable, ClassTransient},
		{"provider timeout", ErrProviderTimeout, ClassTransient},
		{"rate limited", ErrProviderRateLimited, ClassTransient},
		{"deadline exceeded", context.DeadlineExceeded, ClassTransient},
		{"invalid query", ErrInvalidQuery, ClassInvalid},
		{"not found", ErrNotFound, ClassInvalid},
		{"fingerprint collision", ErrFingerprintCollision, ClassFatal},
		{"invalid config", ErrInvalidConfig, ClassFatal},
		{"unknown defaults to transient", New("something odd"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifiedWrappersOverrideHeuristics(t *testing.T) {
	// An error whose message looks transient is still invalid once
	// explicitly classified.
	err := WrapInvalid(New("connection timeout"), "Query", "Validate", "threshold check")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, ClassInvalid, Classify(err))
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	err := WrapTransient(ErrProviderTimeout, "Provider", "Embed", "upstream call")

	var ce *ClassifiedError
	require.True(t, As(err, &ce))
	assert.Equal(t, "Provider", ce.Component)
	assert.Equal(t, "Embed", ce.Operation)
	assert.True(t, Is(err, ErrProviderTimeout))
}

func TestTransientMessagePatterns(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: connection refused")))
	assert.True(t, IsTransient(fmt.Errorf("503 service unavailable")))
	assert.False(t, IsTransient(nil))
}

func TestIsNotFound(t *testing.T) {
	err := WrapInvalid(ErrNotFound, "Store", "Delete", "lookup")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(ErrInvalidQuery))
}
