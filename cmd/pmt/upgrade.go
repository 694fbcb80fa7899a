package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/pmt/internal/orchestrator"
	"github.com/frederic-klein/pmt/internal/upgrade"
)

var dryRun bool

func newUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "upgrade",
		Aliases: []string{"Syu"},
		Short:   "Upgrade installed AUR packages, probing VCS packages for new commits",
		Args:    cobra.NoArgs,
		RunE:    runUpgrade,
	}
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "List upgrades without building")
	return cmd
}

func runUpgrade(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	a, err := newApp(!dryRun)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	fmt.Println("Checking AUR packages for updates...")
	rep, err := upgrade.New(a.aur, a.pacman, a.builder,
		upgrade.WithLogger(a.logger),
		upgrade.WithProgress(a.gate, a.cfg.LogDir),
	).Scan(ctx)
	if err != nil {
		return err
	}
	a.metrics.UpgradeCandidates(len(rep.Candidates))

	for _, name := range rep.Skipped {
		fmt.Fprintf(os.Stderr, "warning: could not determine version of %s, skipped\n", name)
	}
	if len(rep.Candidates) == 0 {
		fmt.Printf("All %d AUR packages are up to date\n", rep.Foreign)
		return nil
	}

	lines := upgrade.ConfirmLines(rep.Candidates)
	if dryRun {
		for _, l := range lines {
			fmt.Println(l)
		}
		return nil
	}

	res, err := upgrade.Plan(ctx, a.resolver, rep.Candidates)
	a.metrics.ResolutionDone(err)
	if err != nil {
		return err
	}
	a.logEvents(res.Events)
	if res.Empty() {
		fmt.Println("All AUR packages are already up to date")
		return nil
	}

	if err := a.withStore(); err != nil {
		return err
	}
	names := make([]string, len(rep.Candidates))
	for i, c := range rep.Candidates {
		names[i] = c.Name
	}
	st, err := a.orchestrator().Run(ctx, orchestrator.Request{
		Result:  res,
		Summary: strings.Join(names, " "),
		Title:   "AUR Upgrade",
		Lines:   append(lines, orchestrator.ConfirmLines(res)...),
	})
	return report(st, err)
}
