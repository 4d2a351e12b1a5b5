package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/issue-rest/internal/remote"
	"github.com/nhle/issue-rest/internal/ui/compose"
)

func composeCmd() *cobra.Command {
	var (
		server   string
		user     string
		projects []string
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Create an issue on a running server from an interactive form",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				server = cfg.Server.BaseURL
			}

			client := remote.NewClient(server, "").As(user)
			created, err := compose.Run(cmd.Context(), client, projects)
			if err != nil {
				return err
			}
			if created != nil {
				fmt.Fprintln(cmd.OutOrStdout(), created.Key)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server base URL (defaults to server.base_url)")
	cmd.Flags().StringVar(&user, "as", "admin", "user name sent as the reporter")
	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "limit to these project keys")

	return cmd
}
