package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/issue-rest/internal/credential"
	"github.com/nhle/issue-rest/internal/logging"
	"github.com/nhle/issue-rest/internal/remote"
)

func importCmd() *cobra.Command {
	var projects []string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import projects and create screens from the remote instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Remote.BaseURL == "" {
				return errors.New("remote.base_url is not configured")
			}
			if len(projects) == 0 {
				projects = cfg.Remote.Projects
			}

			creds, err := credential.Open()
			if err != nil {
				return err
			}
			token, err := creds.Get(cfg.Remote.TokenKey)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			logger := logging.Setup(cfg.Log)
			im := remote.NewImporter(remote.NewClient(cfg.Remote.BaseURL, token), st, projects, cfg.Remote.WorkflowID, logger)
			sum, err := im.Import(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d project(s), %d issue type(s), %d custom field(s), %d priorities\n",
				sum.Projects, sum.IssueTypes, sum.CustomFields, sum.Priorities)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&projects, "project", "p", nil, "project keys to import (overrides remote.projects)")

	return cmd
}
