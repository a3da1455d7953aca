package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "tensorkv")
	require.Contains(t, out.String(), version)
}

func TestStartCommandRejectsBadConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"start", "--log-level", "loud"})
	require.Error(t, root.Execute())
}

func TestStartCommandRejectsBadBootstrap(t *testing.T) {
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"start", "--bootstrap-store", "s:5:2"})
	require.Error(t, root.Execute())
}

func TestStartCommandHasConfigFlags(t *testing.T) {
	root := newRootCmd()
	start, _, err := root.Find([]string{"start"})
	require.NoError(t, err)
	for _, name := range []string{
		"config", "listen-addr", "metrics-addr", "log-level", "log-format",
		"shutdown-grace", "max-request-bytes", "chunk-size", "sample-interval",
		"bootstrap-store",
	} {
		require.NotNil(t, start.Flags().Lookup(name), "flag %s", name)
	}
}
