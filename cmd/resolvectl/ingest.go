package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudo-kno3/analyte-resolver/internal/learning"
)

func newIngestCmd() *cobra.Command {
	var (
		vendor     string
		submission string
		confirmed  bool
		margin     float64
		bootstrap  string
	)

	cmd := &cobra.Command{
		Use:   "ingest <raw-text> <analyte-id>",
		Short: "Apply a human-validated match to the learning state",
		Long: `Apply a human-validated runtime decision: the vendor cache is updated
unconditionally (observation, confirmation child, consensus/collision
state machine), and a global synonym is promoted only if the dual gate
passes — the cascade must have independently confirmed the match
(--confirmed) with a margin at or above dual_gate_margin, and the daily
global-promotion cap must not already be reached.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if bootstrap != "" {
				if err := bootstrapCorpus(a.store, bootstrap); err != nil {
					return err
				}
			}

			ingestor := learning.NewIngestor(a.store, a.logger, a.cfg.DualGateMargin, a.cfg.MaxGlobalSynonymsPerDay)
			loop := learning.NewLoop(ingestor, learning.LoopOptions{
				Cache:      a.cache,
				Variants:   a.store,
				Embeddings: a.store,
			}, a.logger)

			added, err := loop.IngestValidated(learning.ValidationEvent{
				RawText:          args[0],
				AnalyteID:        args[1],
				LabVendor:        vendor,
				SubmissionID:     submission,
				CascadeConfirmed: confirmed,
				CascadeMargin:    margin,
			}, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if added {
				fmt.Printf("ingested %q -> %s\n", args[0], args[1])
			} else {
				fmt.Printf("no new synonym for %q -> %s (gate, cap, or duplicate); vendor cache updated\n", args[0], args[1])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "source lab vendor for the vendor-cache update and harvest_source tag")
	cmd.Flags().StringVar(&submission, "submission", "", "submission ID for consensus counting (generated if empty)")
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "cascade independently confirmed the match (not just vendor cache)")
	cmd.Flags().Float64Var(&margin, "margin", 0.0, "cascade margin from the resolution that produced this match")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "", "load this corpus file into the store first")
	return cmd
}
