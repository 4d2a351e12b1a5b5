package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/issue-rest/internal/seed"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file]",
		Short: "Apply a YAML seed file, or the built-in demo seed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			f, err := seed.Default()
			if len(args) == 1 {
				f, err = seed.Load(args[0])
			}
			if err != nil {
				return err
			}
			if err := seed.Apply(cmd.Context(), st, f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d project(s) into %s\n", len(f.Projects), cfg.Database.Path)
			return nil
		},
	}
}
