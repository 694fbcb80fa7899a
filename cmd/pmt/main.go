package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	noConfirm  bool
	aurURL     string
	cacheDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pmt",
		Short:         "Package manager tool for the Arch User Repository",
		Long:          "pmt resolves AUR dependency graphs, builds packages in dependency order with recipe review, and upgrades installed AUR packages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/pmt/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	pf.BoolVar(&noConfirm, "noconfirm", false, "Do not ask for confirmation or recipe review")
	pf.StringVar(&aurURL, "aur-url", "", "AUR base URL")
	pf.StringVar(&cacheDir, "cache-dir", "", "Build cache directory")

	rootCmd.AddCommand(
		newInstallCmd(),
		newResolveCmd(),
		newUpgradeCmd(),
		newSearchCmd(),
		newInfoCmd(),
		newDownloadCmd(),
		newCleanCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
