package toolshell

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-context/specctxd/internal/visibility"
)

func TestShell_CallDispatchesRegisteredHandler(t *testing.T) {
	vis := visibility.NewRegistry()
	shell := NewShell(vis, t.TempDir(), "", nil)

	var sawParams string
	shell.Register("spec-status", func(ctx context.Context, shellCtx Context, params []byte) (any, error) {
		sawParams = string(params)
		return map[string]string{"stage": "design"}, nil
	})

	result, offloaded, err := shell.Call(context.Background(), "spec-status", []byte(`{"spec":"foo"}`))
	require.NoError(t, err)
	assert.False(t, offloaded)
	assert.Equal(t, `{"spec":"foo"}`, sawParams)
	assert.False(t, result.IsError)
}

func TestShell_CallUnknownToolErrors(t *testing.T) {
	vis := visibility.NewRegistry()
	shell := NewShell(vis, t.TempDir(), "", nil)

	_, _, err := shell.Call(context.Background(), "nonexistent", nil)
	require.Error(t, err)
	var unknown *ErrUnknownTool
	assert.ErrorAs(t, err, &unknown)
}

func TestShell_CallHiddenAtCurrentTierErrors(t *testing.T) {
	vis := visibility.NewRegistry()
	shell := NewShell(vis, t.TempDir(), "", nil)
	shell.Register("dispatch-runtime", func(ctx context.Context, shellCtx Context, params []byte) (any, error) {
		return nil, nil
	})

	vis.ProcessToolCall("get-implementer-guide")

	_, _, err := shell.Call(context.Background(), "dispatch-runtime", []byte(`{}`))
	require.Error(t, err)
	var hidden *ErrNotVisible
	assert.ErrorAs(t, err, &hidden)
}
