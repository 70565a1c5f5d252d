package ftr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-ftr/providers"
)

func newTestApp(t *testing.T, result any, shutdown func(error)) *App {
	t.Helper()
	catalog := NewCatalog().AddRunner("custom", func(context.Context, *providers.Resolver) (any, error) {
		return result, nil
	})
	app, err := NewApp(&Config{
		ConfigFile: writeConfig(t, "testRunner: custom\n"),
		Log:        log.NewLogger(log.DiscardHandler()),
	}, catalog, nil, shutdown)
	require.NoError(t, err)
	return app
}

func TestAppStartSignalsShutdownOnSuccess(t *testing.T) {
	done := make(chan error, 1)
	app := newTestApp(t, nil, func(err error) { done <- err })

	require.NoError(t, app.Start(context.Background()))
	assert.True(t, app.Stopped())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown callback was not called")
	}
	require.NoError(t, app.Stop(context.Background()))
}

func TestAppStartReturnsTestFailure(t *testing.T) {
	app := newTestApp(t, 3, func(error) {})

	err := app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Equal(t, 3, app.Failures())
}

func TestAppStartReturnsRuntimeError(t *testing.T) {
	app, err := NewApp(&Config{
		ConfigFile: writeConfig(t, "testFiles: []\n"),
		Log:        log.NewLogger(log.DiscardHandler()),
	}, NewCatalog(), nil, func(error) {})
	require.NoError(t, err)

	err = app.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err))
	assert.True(t, errors.Is(err, ErrNoTests))
}
