// Package main provides the resolvectl command-line tool, a thin shell
// over the cascade resolver library.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sudo-kno3/analyte-resolver/internal/config"
	"github.com/sudo-kno3/analyte-resolver/internal/corpus"
	"github.com/sudo-kno3/analyte-resolver/internal/fuzzy"
	"github.com/sudo-kno3/analyte-resolver/internal/logging"
	"github.com/sudo-kno3/analyte-resolver/internal/resolve"
	"github.com/sudo-kno3/analyte-resolver/internal/resolveerr"
	"github.com/sudo-kno3/analyte-resolver/internal/store"
	"github.com/sudo-kno3/analyte-resolver/internal/vendorcache"
)

// Version information, set at build time.
var (
	version = "dev"
	commit  = "none"
)

var (
	flagConfigPath string
	flagDBPath     string
	flagDebug      bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resolvectl",
		Short:   "Resolve free-form lab chemical names to canonical analyte IDs",
		Version: fmt.Sprintf("%s (%s)", version, commit),
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to resolvectl config YAML (defaults built in)")
	cmd.PersistentFlags().StringVar(&flagDBPath, "db", "resolvectl.duckdb", "path to the DuckDB store")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// app bundles everything a command needs once the store is open: the
// shared config, logger, store handle, warm-started vendor cache, and a
// ready-to-use Resolver over all of them.
type app struct {
	cfg      config.Config
	logger   *zap.SugaredLogger
	store    *store.Store
	cache    *vendorcache.Cache
	resolver *resolve.Resolver
}

func (a *app) Close() error { return a.store.Close() }

// openApp opens the store at flagDBPath and builds the in-memory fuzzy
// index and vendor cache from its persisted state. The semantic index is
// left unwired: no production embedding model ships with this tool, so
// semantic search stays off until a caller embeds one via the library
// API directly.
func openApp() (*app, error) {
	logger, err := logging.New(flagDebug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(flagDBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	entries, err := st.AllSynonymEntries()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load synonym entries: %w", err)
	}
	fuzzyEntries := make([]fuzzy.Entry, len(entries))
	for i, e := range entries {
		fuzzyEntries[i] = fuzzy.Entry{
			AnalyteID: e.AnalyteID, PreferredName: e.PreferredName,
			Normalized: e.Normalized, LabVendor: e.LabVendor,
		}
	}
	fuzzyIndex := fuzzy.NewIndex(fuzzyEntries)

	vendorCache := vendorcache.New(vendorcache.Params{
		VendorBoost:          cfg.VendorBoost,
		DecayWindowDays:      cfg.DecayWindowDays,
		DecayLambda:          cfg.DecayLambda,
		DecayFloor:           cfg.DecayFloor,
		MinConfirmations:     cfg.MinConfirmations,
		MaxCollisionCount:    cfg.MaxCollisionCount,
		UnstableCooldownDays: cfg.UnstableCooldownDays,
	})
	// Duplicate (vendor, normalized_text) rows can survive a restore from
	// a backup taken without the unique index; keep the earliest row per
	// pair and pull the rest before the cache warm-starts from them.
	if quarantine, err := st.DetectVendorCacheConflicts(); err != nil {
		if !errors.Is(err, resolveerr.ErrVendorCacheConflict) {
			st.Close()
			return nil, fmt.Errorf("check vendor cache conflicts: %w", err)
		}
		logger.Warnw("vendor cache conflict, quarantining duplicate lab variants",
			"rows", len(quarantine), "error", err)
		if err := st.QuarantineLabVariants(quarantine); err != nil {
			st.Close()
			return nil, fmt.Errorf("quarantine lab variants: %w", err)
		}
	}

	variants, confirmations, err := st.LoadAllLabVariants()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load lab variants: %w", err)
	}
	for _, v := range variants {
		if err := vendorCache.Load(v, confirmations[v.ID]); err != nil {
			logger.Warnw("skipping duplicate lab variant on warm start", "vendor", v.LabVendor, "error", err)
		}
	}

	r := resolve.New(cfg, st, st, fuzzyIndex, nil, nil, vendorCache, logger, "", "")
	return &app{cfg: cfg, logger: logger, store: st, cache: vendorCache, resolver: r}, nil
}

// bootstrapCorpus loads a corpus file into the store, used by the
// ingest command's --bootstrap flag for a from-scratch store.
func bootstrapCorpus(st *store.Store, path string) error {
	loader := corpus.NewLoader(path)
	c, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load corpus %s: %w", path, err)
	}
	if err := st.LoadAnalytes(c.Analytes); err != nil {
		return fmt.Errorf("load analytes: %w", err)
	}
	if err := st.LoadSynonyms(c.Synonyms); err != nil {
		return fmt.Errorf("load synonyms: %w", err)
	}
	return st.RecordSnapshot(c.Hash(), "", "bootstrap at "+time.Now().UTC().Format(time.RFC3339))
}
