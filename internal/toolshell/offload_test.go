package toolshell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) Context {
	t.Helper()
	dir := t.TempDir()
	return NewContext(dir, "", nil)
}

func TestMaybeOffload_SmallResultPassesThrough(t *testing.T) {
	o := NewOffloader()
	ctx := testContext(t)

	out, offloaded, err := o.MaybeOffload(ctx, "spec-status", map[string]string{"stage": "design"})
	require.NoError(t, err)
	assert.False(t, offloaded)
	assert.Equal(t, map[string]string{"stage": "design"}, out)
}

func TestMaybeOffload_LargeResultWritesFile(t *testing.T) {
	o := &Offloader{Threshold: 10, TTL: OffloadTTLDefault}
	ctx := testContext(t)

	big := strings.Repeat("x", 500)
	out, offloaded, err := o.MaybeOffload(ctx, "search", map[string]string{"content": big})
	require.NoError(t, err)
	require.True(t, offloaded)

	result, ok := out.(Offloaded)
	require.True(t, ok)
	assert.Equal(t, "search", result.Tool)
	assert.True(t, result.Offloaded)
	assert.True(t, result.OriginalSize > 0)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), big)
}

func TestMaybeOffload_PreviewSkipsBracketsAndBlankLines(t *testing.T) {
	o := &Offloader{Threshold: 1, TTL: OffloadTTLDefault}
	ctx := testContext(t)

	out, _, err := o.MaybeOffload(ctx, "t", "{\n\nline one\n}\nline two\n")
	require.NoError(t, err)
	result := out.(Offloaded)
	assert.NotContains(t, result.Preview, "{")
	assert.Contains(t, result.Preview, "line one")
	assert.Contains(t, result.Preview, "line two")
}

func TestMaybeOffload_SweepsStaleFilesBeforeWrite(t *testing.T) {
	o := &Offloader{Threshold: 1, TTL: 10 * time.Millisecond}
	ctx := testContext(t)

	stalePath := filepath.Join(ctx.ResultsDir(), "stale-1-aaaaaaaa.txt")
	require.NoError(t, os.MkdirAll(ctx.ResultsDir(), 0o755))
	require.NoError(t, os.WriteFile(stalePath, []byte("old"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))

	_, offloaded, err := o.MaybeOffload(ctx, "t", strings.Repeat("y", 50))
	require.NoError(t, err)
	require.True(t, offloaded)

	_, err = os.Stat(stalePath)
	assert.True(t, os.IsNotExist(err))
}
