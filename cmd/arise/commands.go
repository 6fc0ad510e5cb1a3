package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ClipFinance/arise-lib/cooldown"
	"github.com/ClipFinance/arise-lib/dapp"
	"github.com/ClipFinance/arise-lib/points"
)

// withApp builds the app, optionally connects the wallet and runs fn.
func withApp(cmd *cobra.Command, connect bool, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()

	confirm := promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout())
	if assumeYes {
		confirm = nil
	}

	a, err := newApp(ctx, configFile, confirm)
	if err != nil {
		return err
	}
	defer a.close()

	if connect {
		if _, err := a.service.Connect(ctx); err != nil {
			return err
		}
	}
	return fn(ctx, a)
}

var sayCmd = &cobra.Command{
	Use:   "say",
	Short: "Say aRISE (0.001 ETH, once every 24h)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			if _, err := a.service.SayArise(ctx); err != nil {
				return err
			}
			return a.waitForTracker(ctx)
		})
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <recipient> <amount>",
	Short: "Send ETH and earn transfer points",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			if _, err := a.service.Transfer(ctx, args[0], args[1]); err != nil {
				return err
			}
			// also covers the credit transaction tracked once the transfer confirms
			return a.waitForTracker(ctx)
		})
	},
}

var shareCmd = &cobra.Command{
	Use:   "share <twitter|telegram> <text> <url>",
	Short: "Earn social share points and print the share link",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		platform, err := dapp.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			link, err := a.service.Share(ctx, platform, args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		})
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn <amount>",
	Short: "Burn points (minimum 1000)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, ok := new(big.Int).SetString(args[0], 10)
		if !ok {
			return errors.Errorf("invalid amount %q", args[0])
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			if _, err := a.service.BurnPoints(ctx, amount); err != nil {
				return err
			}
			return a.waitForTracker(ctx)
		})
	},
}

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Show the points of the connected wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			total, err := a.service.Points(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s points\n", total)
			return nil
		})
	},
}

var (
	historySort string
	historyPage int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the points history of the connected wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		order, err := points.ParseSortOrder(historySort)
		if err != nil {
			return err
		}
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			page, err := a.service.History(ctx, order, historyPage)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range page.Entries {
				fmt.Fprintf(out, "%s  %-22s %6s  %s\n",
					e.Timestamp.Format("2006-01-02 15:04:05"),
					e.Action.Label(),
					e.Points.String(),
					a.cfg.Chain.ExplorerTxURL(e.TxHash),
				)
			}
			fmt.Fprintf(out, "page %d/%d (%d entries)\n", page.Page, page.TotalPages, page.Total)
			return nil
		})
	},
}

var countsCmd = &cobra.Command{
	Use:   "counts",
	Short: "Show your and the global aRISE count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			counts, err := a.service.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "you: %s  total: %s\n", counts.User, counts.Total)
			return nil
		})
	},
}

var cooldownWatch bool

var cooldownCmd = &cobra.Command{
	Use:   "cooldown",
	Short: "Show the aRISE cooldown of the connected wallet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, true, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if !cooldownWatch {
				state, err := a.service.Cooldown(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, describeCooldown(state))
				return nil
			}

			addr, _ := a.chain.Address()
			err := cooldown.NewGate(a.store, a.logger).Watch(ctx, addr, func(state cooldown.State) {
				fmt.Fprintln(out, describeCooldown(state))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func describeCooldown(state cooldown.State) string {
	if !state.OnCooldown {
		return "ready to say aRISE"
	}
	return "next aRISE in " + state.Formatted()
}

var trackCmd = &cobra.Command{
	Use:   "track <txHash>",
	Short: "Track an arbitrary transaction until it is confirmed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(common.FromHex(args[0])) != common.HashLength {
			return errors.Errorf("invalid transaction hash %q", args[0])
		}
		hash := common.HexToHash(args[0])

		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			a.service.Track(hash)
			return a.waitForTracker(ctx)
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a notification for every new aRISE",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, false, func(ctx context.Context, a *app) error {
			err := a.service.WatchArise(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySort, "sort", string(points.SortNewest), "newest, oldest, points-high or points-low")
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "page number")
	cooldownCmd.Flags().BoolVar(&cooldownWatch, "watch", false, "refresh every second until interrupted")
}
