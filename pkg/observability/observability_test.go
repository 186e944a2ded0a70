package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Disabled(t *testing.T) {
	c := DefaultConfig()
	require.False(t, c.Enabled)
	require.Equal(t, "lousy-iam", c.ServiceName)
	require.Equal(t, 10*time.Second, c.ExportInterval)
}

func TestNew_DisabledProviderIsNoop(t *testing.T) {
	p, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, p)

	// Recording and shutdown on a disabled provider must not panic or
	// touch any exporter.
	p.RecordPolicy("permission", 2, 1, 3)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_NilConfigDefaultsToDisabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	p.RecordPolicy("trust", 0, 0, 0)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNilProviderIsSafe(t *testing.T) {
	var p *Provider
	p.RecordPolicy("permission", 1, 0, 1)
	require.NoError(t, p.Shutdown(context.Background()))
}
