package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	playground "github.com/invakid404/cel-playground"
	"github.com/invakid404/cel-playground/internal/share"
)

// addStateFlags registers the flags describing a playground state
func addStateFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", "", "Playground mode (defaults to the default mode)")
	cmd.Flags().StringP("expr", "e", "", "Expression, or @file to read it from a file")
	cmd.Flags().StringArrayP("input", "i", nil, "Input as slot=text or slot=@file, repeatable")
	cmd.Flags().String("example", "", "Start from the named example of the mode")
}

// readValue resolves @file references
func readValue(value string) (string, error) {
	path, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stateFromFlags builds the state described by the flags, starting from the
// named example when one is given
func stateFromFlags(cmd *cobra.Command, p *playground.Playground) (share.State, error) {
	modeID, _ := cmd.Flags().GetString("mode")
	if modeID == "" {
		modeID = p.Registry().Default().ID
	}
	mode, err := p.Registry().Lookup(modeID)
	if err != nil {
		return share.State{}, err
	}

	state := share.State{Mode: mode.ID, Inputs: map[string]string{}}
	if name, _ := cmd.Flags().GetString("example"); name != "" {
		if state, err = p.ApplyExample(mode.ID, name); err != nil {
			return share.State{}, err
		}
		if state.Inputs == nil {
			state.Inputs = map[string]string{}
		}
	}

	if cmd.Flags().Changed("expr") {
		expr, _ := cmd.Flags().GetString("expr")
		if state.Expression, err = readValue(expr); err != nil {
			return share.State{}, fmt.Errorf("failed to read expression: %w", err)
		}
	}

	inputs, _ := cmd.Flags().GetStringArray("input")
	for _, input := range inputs {
		key, value, ok := strings.Cut(input, "=")
		if !ok {
			return share.State{}, fmt.Errorf("input %q is not slot=text", input)
		}
		slot, ok := mode.ResolveSlot(key)
		if !ok {
			return share.State{}, fmt.Errorf("mode %s has no input %q, expected one of %s",
				mode.ID, key, strings.Join(mode.SlotIDs(), ", "))
		}
		if state.Inputs[slot.ID], err = readValue(value); err != nil {
			return share.State{}, fmt.Errorf("failed to read input %s: %w", slot.ID, err)
		}
	}
	return state, nil
}
