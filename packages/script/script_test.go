package script

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/flowspec/packages/core/parser"
)

func TestRun(t *testing.T) {
	t.Run("captures output", func(t *testing.T) {
		result, err := Run(context.Background(), &parser.ScriptSpec{Command: "echo hello"}, "")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", result.Output)
		assert.Equal(t, 0, result.ExitCode)
	})

	t.Run("combines stderr", func(t *testing.T) {
		result, err := Run(context.Background(), &parser.ScriptSpec{Command: "echo oops >&2"}, "")
		require.NoError(t, err)
		assert.Equal(t, "oops\n", result.Output)
	})

	t.Run("non-zero exit is an error with the code preserved", func(t *testing.T) {
		result, err := Run(context.Background(), &parser.ScriptSpec{Command: "exit 3"}, "")
		require.Error(t, err)
		assert.Equal(t, 3, result.ExitCode)
	})

	t.Run("runs in the given directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Run(context.Background(), &parser.ScriptSpec{Command: "echo marker > probe.txt"}, dir)
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "probe.txt"))
	})

	t.Run("empty command is a no-op", func(t *testing.T) {
		result, err := Run(context.Background(), &parser.ScriptSpec{Command: "  "}, "")
		require.NoError(t, err)
		assert.Empty(t, result.Output)
	})
}
