package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := InitLogger("test", dir, false)
	require.NoError(t, err)

	logger.Debug("Debug only goes to file")
	_ = logger.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "sipat_test_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Debug only goes to file"`)
	assert.Contains(t, string(data), `"env":"test"`)
}
