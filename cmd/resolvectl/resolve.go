package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var vendor string

	cmd := &cobra.Command{
		Use:   "resolve <text>",
		Short: "Resolve one free-form lab chemical name to a canonical analyte ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.resolver.Resolve(args[0], vendor, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("resolve: %w", err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "lab vendor tag for vendor-cache signals")
	return cmd
}
