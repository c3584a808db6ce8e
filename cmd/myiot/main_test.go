package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/eigenein/myiot/internal/config"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", buf.String())
}

func TestApplyFlagsOverridesOnlyChanged(t *testing.T) {
	cmd := newRunCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--http", ":9090", "--log-level", "debug"}))
	cfg := cfgpkg.Default()
	cfg.Fsync = "always"
	applyFlags(cmd, &cfg)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "always", cfg.Fsync)
	assert.Equal(t, 5, cfg.FsyncIntervalMs)
}

func TestRootHasClientCommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"run", "version", "health", "actual", "channels", "log", "watch"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}
