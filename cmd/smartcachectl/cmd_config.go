package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prashanthpai/smartcache/config"
)

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or replace the configuration document",
	}

	configShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored configuration document",
		Long: `Print the configuration document stored in redis. When no document is
stored the defaults are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			b, err := s.Marshal()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}

	configPushCmd := &cobra.Command{
		Use:   "push [file]",
		Short: "Validate a configuration document and store it",
		Long: `Validate the configuration document in file, store it in redis and notify
running instances.

Example document:
  {
    "bufferCapacity": 102400,
    "rules": [
      {"matchKind": "tablesAny", "matchValues": ["books"], "ttl": "5m"}
    ]
  }`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			s, err := config.Parse(b)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if err := a.save(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %d rules\n", s.Ruleset.Len())
			return nil
		},
	}

	configCmd.AddCommand(configShowCmd, configPushCmd)
	return configCmd
}

// load returns the stored snapshot, or the defaults when none is stored.
func (a *app) load(ctx context.Context) (*config.Snapshot, error) {
	return load(ctx, a.source())
}

func (a *app) save(ctx context.Context, s *config.Snapshot) error {
	return save(ctx, a.source(), s)
}

func load(ctx context.Context, src config.Source) (*config.Snapshot, error) {
	b, err := src.Load(ctx)
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return config.Parse(b)
}

func save(ctx context.Context, w config.Writer, s *config.Snapshot) error {
	b, err := s.Marshal()
	if err != nil {
		return err
	}
	return w.Store(ctx, b)
}
