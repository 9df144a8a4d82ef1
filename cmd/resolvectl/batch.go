package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	var vendor string
	var workers int

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Resolve every line of a file, one input per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := readLines(args[0])
			if err != nil {
				return err
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.resolver.ResolveBatch(lines, vendor, time.Now().UTC(), workers)
			if err != nil {
				return fmt.Errorf("resolve batch: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			for _, res := range results {
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "lab vendor tag applied to every input")
	cmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "number of resolve workers")
	return cmd
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
