package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invakid404/cel-playground/internal/catalog"
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "List the playground modes and their inputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		registry := a.playground.Registry()
		var b strings.Builder
		b.WriteString("# Modes\n\n")
		for _, mode := range registry.List() {
			fmt.Fprintf(&b, "## %s (`%s`)", mode.Name, mode.ID)
			if mode.ID == registry.Default().ID {
				b.WriteString(" *default*")
			}
			b.WriteString("\n\n| Input | Name | Aliases |\n|---|---|---|\n")
			for _, slot := range mode.Tabs {
				fmt.Fprintf(&b, "| `%s` | %s | %s |\n", slot.ID, slot.Name, strings.Join(slot.Aliases, ", "))
			}
			b.WriteString("\n")
		}
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(b.String()))
		return nil
	},
}

var examplesCmd = &cobra.Command{
	Use:   "examples [mode]",
	Short: "List the examples of a mode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		modeID := a.playground.Registry().Default().ID
		if len(args) == 1 {
			modeID = args[0]
		}
		examples, err := a.playground.Catalog().Examples(modeID)
		if err != nil {
			return err
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Examples for `%s`\n\n", modeID)
		category := ""
		for _, example := range examples {
			if example.Category != category {
				category = example.Category
				fmt.Fprintf(&b, "\n## %s\n\n", category)
			}
			fmt.Fprintf(&b, "- %s: `%s`\n", example.DisplayName(), example.Name)
		}
		if len(examples) == 0 {
			fmt.Fprintf(&b, "No examples, the editors start %s.\n", strings.ToLower(catalog.BlankOption))
		}
		fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(b.String()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modesCmd, examplesCmd)
}
