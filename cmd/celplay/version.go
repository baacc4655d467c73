package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/invakid404/cel-playground/internal/eval"
	"github.com/invakid404/cel-playground/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of celplay",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "celplay version %s\n", successStyle(info.String()))
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", faint("go "+info.Go+", libraries: "+fmt.Sprint(eval.LibraryNames())))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("json", false, "Print the build information as JSON")
}
