package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invakid404/cel-playground/internal/share"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate an expression against its inputs",
	Example: `  celplay eval -e 'x * 2' -i 'data=x: 21'
  celplay eval -m vap -e @policy.yaml -i dataUpdated=@deployment.yaml
  celplay eval --link 'https://playcel.undistro.io/?content=H4sI...'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		var state share.State
		if link, _ := cmd.Flags().GetString("link"); link != "" {
			content, err := readValue(link)
			if err != nil {
				return err
			}
			content = strings.TrimSpace(content)
			if c, ok := share.ContentFromURL(content); ok {
				content = c
			}
			if state, err = a.playground.Decode(content); err != nil {
				return err
			}
		} else if state, err = stateFromFlags(cmd, a.playground); err != nil {
			return err
		}

		resp := a.playground.Run(cmd.Context(), state)
		out := cmd.OutOrStdout()
		if resp.IsError {
			fmt.Fprintln(out, errorStyle(resp.Output))
			return fmt.Errorf("evaluation failed")
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(resp.Output), "", "  "); err != nil {
			fmt.Fprintln(out, resp.Output)
			return nil
		}
		fmt.Fprintln(out, pretty.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(evalCmd)
	addStateFlags(evalCmd)
	evalCmd.Flags().String("link", "", "Evaluate the state of a share link or content parameter, or @file")
}
