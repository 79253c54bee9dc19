package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkSaveWritesAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_results.csv")
	sink, err := NewSink(path, nil)
	require.NoError(t, err)

	got, err := sink.Save(context.Background(), strings.NewReader("first,run\n"))
	require.NoError(t, err)
	require.Equal(t, path, got)

	// A second pass replaces the previous dataset entirely.
	_, err = sink.Save(context.Background(), strings.NewReader("x\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "x\n", string(data))
}

func TestSinkCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "2026", "run_results.csv")
	sink, err := NewSink(path, nil)
	require.NoError(t, err)

	_, err = sink.Save(context.Background(), strings.NewReader("a\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "a\n", string(data))
}

func TestSinkRequiresPath(t *testing.T) {
	_, err := NewSink("  ", nil)
	require.Error(t, err)
}

func TestSinkSaveHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_results.csv")
	sink, err := NewSink(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.Save(ctx, strings.NewReader("a\n"))
	require.Error(t, err)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "no file may be created after cancellation")
}
