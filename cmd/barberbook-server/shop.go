package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"barberbook/internal/domain"
	"barberbook/internal/service/booking"
)

func newShopCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shop",
		Short: "Inspect and change the shop configuration",
	}
	cmd.AddCommand(
		shopSubcommand(root, "show", "Print the shop configuration", cobra.NoArgs,
			func(ctx context.Context, svc *booking.Service, args []string) (domain.ShopConfig, error) {
				return svc.GetShopConfig(ctx)
			}),
		shopSubcommand(root, "toggle", "Open or close the shop for client bookings", cobra.NoArgs,
			func(ctx context.Context, svc *booking.Service, args []string) (domain.ShopConfig, error) {
				return svc.ToggleShop(ctx)
			}),
		shopSubcommand(root, "release <client name>", "Exempt a client from the cooldown", cobra.MinimumNArgs(1),
			func(ctx context.Context, svc *booking.Service, args []string) (domain.ShopConfig, error) {
				return svc.ReleaseClient(ctx, strings.Join(args, " "))
			}),
		shopSubcommand(root, "unrelease <client name>", "Remove a client's cooldown exemption", cobra.MinimumNArgs(1),
			func(ctx context.Context, svc *booking.Service, args []string) (domain.ShopConfig, error) {
				return svc.UnreleaseClient(ctx, strings.Join(args, " "))
			}),
	)
	return cmd
}

func shopSubcommand(root *rootOptions, use, short string, argsFn cobra.PositionalArgs, run func(context.Context, *booking.Service, []string) (domain.ShopConfig, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  argsFn,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, closeStore, err := openStore(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer closeStore()

			svc := booking.NewService(repo, booking.WithLocation(cfg.ShopLocation), booking.WithLogger(log))
			shop, err := run(ctx, svc, args)
			if err != nil {
				return err
			}
			printShopConfig(cmd.OutOrStdout(), shop)
			return nil
		},
	}
}

func printShopConfig(w io.Writer, cfg domain.ShopConfig) {
	state := "closed"
	if cfg.IsOpen {
		state = "open"
	}
	lunch := "none"
	if cfg.LunchStart != nil && cfg.LunchEnd != nil {
		lunch = cfg.LunchStart.String() + "-" + cfg.LunchEnd.String()
	}
	days := make([]string, 0, len(cfg.WorkDays))
	for _, wd := range cfg.WorkDays {
		days = append(days, wd.String()[:3])
	}
	blocked := make([]string, 0, len(cfg.BlockedDates))
	for _, d := range cfg.BlockedDates {
		blocked = append(blocked, d.String())
	}

	fmt.Fprintf(w, "shop:      %s\n", state)
	fmt.Fprintf(w, "hours:     %s-%s every %d min\n", cfg.OpenTime, cfg.CloseTime, cfg.IntervalMinutes)
	fmt.Fprintf(w, "lunch:     %s\n", lunch)
	fmt.Fprintf(w, "work days: %s\n", strings.Join(days, " "))
	fmt.Fprintf(w, "blocked:   %s\n", strings.Join(blocked, " "))
	fmt.Fprintf(w, "released:  %s\n", strings.Join(cfg.ReleasedClients, ", "))
	fmt.Fprintf(w, "version:   %d\n", cfg.Version)
}
