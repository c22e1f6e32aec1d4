package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSelectsFirstConfiguredBackend(t *testing.T) {
	echoA := NewEcho(`{"a":true}`)
	echoB := NewEcho(`{"b":true}`)
	gw, err := New(time.Second, nil, echoA, echoB)
	require.NoError(t, err)
	require.Equal(t, "echo", gw.Name())

	text, _, err := gw.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	require.Equal(t, `{"a":true}`, text)
}

func TestNewFailsWithNoBackendsConfigured(t *testing.T) {
	_, err := New(time.Second, nil, nil)
	require.ErrorIs(t, err, ErrNoBackendConfigured)
}

func TestCompleteWrapsBackendError(t *testing.T) {
	echo := &Echo{FailWith: &Error{Category: CategoryRate, Provider: "echo"}}
	gw, err := New(time.Second, echo)
	require.NoError(t, err)

	_, _, err = gw.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CategoryRate, perr.Category)
}

func TestCompleteRespectsTimeout(t *testing.T) {
	gw, err := New(time.Millisecond, &slowBackend{})
	require.NoError(t, err)

	_, _, err = gw.Complete(context.Background(), "sys", "user")
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CategoryTransport, perr.Category)
}

type slowBackend struct{}

func (s *slowBackend) Name() string { return "slow" }

func (s *slowBackend) Complete(ctx context.Context, systemMessage, userMessage string, params SamplingParams) (string, Usage, error) {
	select {
	case <-time.After(time.Second):
		return "too slow", Usage{}, nil
	case <-ctx.Done():
		return "", Usage{}, ctx.Err()
	}
}

func TestCategoryFromHTTPStatus(t *testing.T) {
	cases := map[int]Category{
		401: CategoryUnauthorized,
		403: CategoryUnauthorized,
		429: CategoryRate,
		400: CategoryBadRequest,
		404: CategoryBadRequest,
		500: CategoryServer,
		503: CategoryServer,
	}
	for status, want := range cases {
		require.Equal(t, want, CategoryFromHTTPStatus(status))
	}
}
