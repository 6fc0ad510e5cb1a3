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
	configFile string
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:           "arise",
	Short:         "aRISE dApp client",
	Long:          `Say aRISE, send ETH, share and burn points on RISE testnet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "approve every transaction without asking")
	rootCmd.AddCommand(
		sayCmd,
		transferCmd,
		shareCmd,
		burnCmd,
		pointsCmd,
		historyCmd,
		countsCmd,
		cooldownCmd,
		trackCmd,
		watchCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
