package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/frederic-klein/pmt/internal/orchestrator"
	"github.com/frederic-klein/pmt/internal/plan"
	"github.com/frederic-klein/pmt/internal/resolver"
)

var planFormat string

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "install <package>...",
		Aliases: []string{"S"},
		Short:   "Resolve, review, build and install AUR packages",
		Args:    cobra.MinimumNArgs(1),
		RunE:    runInstall,
	}
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <package>...",
		Short: "Print the build plan without building anything",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runResolve,
	}
	cmd.Flags().StringVarP(&planFormat, "output", "o", "text", "Output format: text or yaml")
	return cmd
}

// resolveAll resolves every root and merges the plans.
func (a *app) resolveAll(ctx context.Context, roots []string) (*resolver.Result, error) {
	results := make([]*resolver.Result, 0, len(roots))
	for _, root := range roots {
		res, err := a.resolver.Resolve(ctx, root)
		a.logEvents(res.Events)
		a.metrics.ResolutionDone(err)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return resolver.Merge(results...), nil
}

func runInstall(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	res, err := a.resolveAll(ctx, args)
	if err != nil {
		return err
	}
	summary := strings.Join(args, " ")
	if res.Empty() {
		fmt.Printf("%s is already up to date\n", summary)
		return nil
	}

	if err := a.withStore(); err != nil {
		return err
	}
	st, err := a.orchestrator().Run(ctx, orchestrator.Request{Result: res, Summary: summary})
	return report(st, err)
}

// report turns a failed pipeline run into the command's error.
func report(st *orchestrator.State, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, orchestrator.ErrCancelled) || errors.Is(err, orchestrator.ErrReviewRejected) {
		fmt.Println(err)
		return nil
	}
	if len(st.Built) > 0 {
		fmt.Fprintf(os.Stderr, "built before failure: %s\n", strings.Join(st.Built, " "))
	}
	if st.LogPath != "" {
		fmt.Fprintf(os.Stderr, "build log: %s\n", st.LogPath)
	}
	return err
}

func runResolve(cmd *cobra.Command, args []string) (err error) {
	format, err := plan.ParseFormat(planFormat)
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.close()) }()

	res, err := a.resolveAll(cmd.Context(), args)
	if err != nil {
		return err
	}
	if err := plan.NewEmitter(os.Stdout, format).Emit(args, res); err != nil {
		return fmt.Errorf("writing plan: %w", err)
	}
	return nil
}
