package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/pmt/internal/cache"
)

// keepBuilds is how many artifacts per build unit survive a cache clean.
const keepBuilds = 2

var (
	cleanBuilds   bool
	cleanReviewed bool
	cleanLogs     bool
	cleanAll      bool
)

var cleanOptions = []string{
	"Clean build cache (keep 2 latest)",
	"Clear reviewed PKGBUILDs",
	"Clear temp logs",
	"Clear ALL",
}

func newCleanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Prune build artifacts, reviewed recipes and build logs",
		Args:  cobra.NoArgs,
		RunE:  runClean,
	}
	cmd.Flags().BoolVar(&cleanBuilds, "builds", false, fmt.Sprintf("Remove all but the %d latest artifacts per package", keepBuilds))
	cmd.Flags().BoolVar(&cleanReviewed, "reviewed", false, "Forget reviewed recipes")
	cmd.Flags().BoolVar(&cleanLogs, "logs", false, "Remove build logs")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "All of the above")
	return cmd
}

func runClean(cmd *cobra.Command, args []string) (err error) {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	builds, reviewed, logs := cleanBuilds || cleanAll, cleanReviewed || cleanAll, cleanLogs || cleanAll
	if !builds && !reviewed && !logs {
		size, err := cache.Size(a.cfg.CacheDir)
		if err != nil {
			return err
		}
		idx, ok := a.gate.SelectOne(fmt.Sprintf("Clean cache (%s in %s)", cache.FormatSize(size), a.cfg.CacheDir), cleanOptions)
		if !ok {
			return nil
		}
		builds, reviewed, logs = idx == 0 || idx == 3, idx == 1 || idx == 3, idx == 2 || idx == 3
	}

	var stale []cache.File
	if builds {
		if stale, err = cache.StaleArtifacts(a.cfg.CacheDir, keepBuilds); err != nil {
			return err
		}
	}
	if logs {
		files, err := cache.Logs(a.cfg.LogDir)
		if err != nil {
			return err
		}
		stale = append(stale, files...)
	}

	var lines []string
	if len(stale) > 0 {
		lines = append(lines, fmt.Sprintf("%d file(s) to remove", len(stale)))
	}
	if reviewed {
		lines = append(lines, "Forget every reviewed PKGBUILD")
	}
	if len(lines) == 0 {
		fmt.Println("Nothing to clean")
		return nil
	}
	if !a.gate.Confirm("Clean cache", lines) {
		return nil
	}

	freed, err := cache.Remove(stale)
	if err != nil {
		return err
	}
	if reviewed {
		if err := a.withStore(); err != nil {
			return err
		}
		n, err := a.store.Clear()
		if err != nil {
			return fmt.Errorf("clearing reviewed recipes: %w", err)
		}
		fmt.Printf("Forgot %d reviewed PKGBUILD(s)\n", n)
	}
	fmt.Printf("Freed %s\n", cache.FormatSize(freed))
	return nil
}
