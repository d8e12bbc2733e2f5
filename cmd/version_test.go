package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCmd(t *testing.T) {
	versionCmd := newVersionCmd()

	assert.Equal(t, "version", versionCmd.Use)
	assert.NotEmpty(t, versionCmd.Short)
	assert.NotNil(t, versionCmd.Run)
	assert.NotNil(t, versionCmd.PersistentPreRun, "version must not load configuration")
}

func TestVersionCommandExecution(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	tests := []struct {
		name     string
		version  string
		expected string
	}{
		{name: "release", version: "1.2.3-test", expected: "sharekeeper version 1.2.3-test\n"},
		{name: "empty", version: "", expected: "sharekeeper version \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.Version = tt.version

			var buf bytes.Buffer
			rootCmd.SetOut(&buf)
			rootCmd.SetArgs([]string{"version", "--config-path", t.TempDir()})
			defer func() {
				rootCmd.SetOut(nil)
				rootCmd.SetArgs(nil)
			}()

			require.NoError(t, rootCmd.Execute())
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}
