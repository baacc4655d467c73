package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	playground "github.com/invakid404/cel-playground"
	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/modes"
)

func newTestCommand(t *testing.T, args ...string) (*cobra.Command, *playground.Playground) {
	t.Helper()
	engine, err := eval.NewBuiltin()
	require.NoError(t, err)
	p, err := playground.New(playground.Options{Registry: modes.Builtin(), Engine: engine})
	require.NoError(t, err)

	cmd := &cobra.Command{Use: "test"}
	addStateFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, p
}

func TestStateFromFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("kind: Deployment"), 0o600))

	cmd, p := newTestCommand(t, "-m", "vap", "-e", "policy", "-i", "dataUpdated=@"+path, "--input", "dataRequest=a=b")
	state, err := stateFromFlags(cmd, p)
	require.NoError(t, err)

	assert.Equal(t, "vap", state.Mode)
	assert.Equal(t, "policy", state.Expression)
	assert.Equal(t, "kind: Deployment", state.Inputs["dataUpdated"])
	assert.Equal(t, "a=b", state.Inputs["dataRequest"])
}

func TestStateFromFlags_Defaults(t *testing.T) {
	cmd, p := newTestCommand(t, "-i", "dataInput=x: 1")
	state, err := stateFromFlags(cmd, p)
	require.NoError(t, err)

	assert.Equal(t, "cel", state.Mode)
	assert.Equal(t, "x: 1", state.Inputs["data"], "aliases resolve to the slot id")
}

func TestStateFromFlags_Example(t *testing.T) {
	cmd, p := newTestCommand(t, "--example", "Strings:Formatting", "-e", "1 + 1")
	state, err := stateFromFlags(cmd, p)
	require.NoError(t, err)

	assert.Equal(t, "1 + 1", state.Expression)
	assert.Contains(t, state.Inputs, "data")
}

func TestStateFromFlags_Errors(t *testing.T) {
	tests := map[string][]string{
		"unknown mode":    {"-m", "nope"},
		"missing equal":   {"-i", "data"},
		"unknown slot":    {"-i", "bogus=1"},
		"missing file":    {"-e", "@/does/not/exist"},
		"missing example": {"--example", "nope"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, p := newTestCommand(t, args...)
			_, err := stateFromFlags(cmd, p)
			assert.Error(t, err)
		})
	}
}
