package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/pmt/internal/downloader"
	"github.com/frederic-klein/pmt/internal/extractor"
	"github.com/frederic-klein/pmt/internal/resolver"
)

var destDir string

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "download <package>...",
		Aliases: []string{"G"},
		Short:   "Download and extract recipe snapshots",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runDownload,
	}
	cmd.Flags().StringVarP(&destDir, "dest", "d", ".", "Extract into this directory")
	return cmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(false)
	if err != nil {
		return err
	}

	pkgs, err := a.aur.InfoBatch(ctx, args)
	if err != nil {
		return err
	}
	found := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		found[p.Name] = true
	}
	for _, name := range args {
		if !found[name] {
			return &resolver.PackageNotFoundError{Name: name}
		}
	}

	dl := downloader.NewDownloader(a.cfg.DownloadWorkers, a.cfg.SnapshotDir())
	var jobs []downloader.Job
	bases := make(map[string]bool)
	for _, p := range pkgs {
		base := p.BaseName()
		if bases[base] {
			continue
		}
		bases[base] = true
		jobs = append(jobs, dl.SnapshotJob(a.cfg.AURURL, base, true))
	}

	ext := extractor.NewExtractor()
	var errs []error
	for _, r := range dl.Download(ctx, jobs) {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("downloading %s: %w", r.Job.Base, r.Error))
			continue
		}
		root, err := ext.Extract(r.Job.DestPath, destDir)
		if err != nil {
			errs = append(errs, fmt.Errorf("extracting %s: %w", r.Job.Base, err))
			continue
		}
		fmt.Printf("%s -> %s\n", r.Job.Base, root)
	}
	return errors.Join(errs...)
}
