package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invakid404/cel-playground/internal/share"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Encode and decode share links",
}

var shareEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print a share link for an expression and its inputs",
	Example: `  celplay share encode -e '1 + 1' -i 'data={}'
  celplay share encode -m webhooks --example default --base-url https://playcel.undistro.io/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		state, err := stateFromFlags(cmd, a.playground)
		if err != nil {
			return err
		}

		base, _ := cmd.Flags().GetString("base-url")
		if base == "" {
			base = a.config.Share.BaseURL
		}
		if base == "" {
			content, err := a.playground.Encode(state)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		}

		link, err := a.playground.Share(state, base)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), link)
		return nil
	},
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <link-or-content>",
	Short: "Print the state carried by a share link",
	Long:  `Prints the state carried by a share link. The argument is a link, its content
parameter, or @file to read either from a file.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		content, err := readValue(args[0])
		if err != nil {
			return err
		}
		content = strings.TrimSpace(content)
		if c, ok := share.ContentFromURL(content); ok {
			content = c
		}
		state, err := a.playground.Decode(content)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shareCmd)
	shareCmd.AddCommand(shareEncodeCmd, shareDecodeCmd)
	addStateFlags(shareEncodeCmd)
	shareEncodeCmd.Flags().String("base-url", "", "Playground address to link to (defaults to share.base_url)")
}
