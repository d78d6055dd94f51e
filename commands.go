package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"companion/candidates"
	"companion/model"
	"companion/provider"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured provider and model are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()
			modelName := rt.provider.GetModel()

			result := provider.TestConnectivity(ctx, rt.provider)
			if result.OK {
				fmt.Fprintf(out, "ok: %s is serving %s\n", rt.cfg.ProviderType, modelName)
				return nil
			}

			switch result.Kind {
			case model.FailureModelNotFound:
				fmt.Fprintf(out, "model not found: %s does not have %q\n", rt.cfg.ProviderType, modelName)
			default:
				fmt.Fprintf(out, "unreachable: %v\n", result.Err)
			}
			return errors.New("connectivity check failed")
		},
	}
}

func newCandidatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "List the built-in generators and their configured state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tENABLED\tWEIGHT")
			for _, d := range rt.registry.Describe(rt.cfg.CandidateSettings()) {
				fmt.Fprintf(tw, "%s\t%t\t%g\n", d.ID, d.Enabled, d.Weight)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if rt.seen != nil {
				n, err := rt.seen.Count(ctx, candidates.NewsID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d headlines already seen\n", n)
			}
			return nil
		},
	}
}
