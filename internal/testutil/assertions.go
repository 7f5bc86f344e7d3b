package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that the log output of a run contains msg.
func AssertLogged(t *testing.T, result *HarnessResult, msg string) {
	t.Helper()
	require.True(t,
		strings.Contains(result.LogOutput, msg),
		"expected log output %q was not found in logs", msg,
	)
}

// ReadArtifact returns the content of a file in the output directory.
func ReadArtifact(t *testing.T, result *HarnessResult, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(result.OutDir, name))
	require.NoError(t, err, "artifact %s", name)
	return string(data)
}
