package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		apiKey   string
		wantErr  bool
		wantName string
	}{
		{name: "openai", provider: "openai", apiKey: "sk-test", wantName: "openai"},
		{name: "anthropic", provider: "anthropic", apiKey: "sk-ant-test", wantName: "anthropic"},
		{name: "missing key", provider: "openai", wantErr: true},
		{name: "unsupported", provider: "gemini", apiKey: "key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.provider, tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Provider())
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "nil", err: nil, retryable: false},
		{name: "rate limit status", err: errors.New("request failed with status 429"), retryable: true},
		{name: "rate limit text", err: errors.New("rate limit exceeded, slow down"), retryable: true},
		{name: "server error", err: errors.New("received 503 Service Unavailable"), retryable: true},
		{name: "bad gateway", err: errors.New("502 Bad Gateway"), retryable: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), retryable: true},
		{name: "timeout", err: errors.New("dial tcp: i/o timeout"), retryable: true},
		{name: "bad request", err: errors.New("400 Bad Request: invalid model"), retryable: false},
		{name: "auth failure", err: errors.New("401 Unauthorized"), retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.err))
		})
	}
}

func TestIsRetryable_WrappedUnavailable(t *testing.T) {
	err := fmt.Errorf("%w: status 429 too many requests", ErrUnavailable)
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, ErrUnavailable)
}
