package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nhle/issue-rest/internal/api"
	"github.com/nhle/issue-rest/internal/credential"
	"github.com/nhle/issue-rest/internal/issue"
	"github.com/nhle/issue-rest/internal/logging"
	"github.com/nhle/issue-rest/internal/mailin"
	"github.com/nhle/issue-rest/internal/meta"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/openapi"
	"github.com/nhle/issue-rest/internal/remote"
	"github.com/nhle/issue-rest/internal/seed"
	"github.com/nhle/issue-rest/internal/store"
	"github.com/nhle/issue-rest/internal/sync"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST server and the background jobs",
		Long: `Start the REST server under /rest/api/2.

The configured seed file is applied on startup. An empty database gets the
built-in demo project TST. Remote metadata import and mail intake run in the
background when enabled in the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return cmd
}

func runServe(ctx context.Context, cfg *model.AppConfig) error {
	logger := logging.Setup(cfg.Log)
	if logging.ParseLevel(cfg.Log.Level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := bootstrap(ctx, st, cfg.Seed.Path, logger); err != nil {
		return err
	}

	validator, err := openapi.Load(ctx)
	if err != nil {
		return err
	}
	provider := meta.NewProvider(st, cfg.Server.BaseURL)
	issues := issue.NewService(st, provider, logger)

	poller := sync.New(logger)
	if err := registerJobs(poller, cfg, st, issues, logger); err != nil {
		return err
	}
	go poller.Run(ctx)

	return api.NewServer(st, issues, provider, validator, logger, cfg.Server.BaseURL).Run(ctx, cfg.Server.Addr)
}

// bootstrap applies the seed file, or the built-in seed to an empty store.
func bootstrap(ctx context.Context, st store.Store, path string, logger *slog.Logger) error {
	if path != "" {
		f, err := seed.Load(path)
		if err != nil {
			return err
		}
		logger.Info("applying seed", "path", path)
		return seed.Apply(ctx, st, f)
	}

	projects, err := st.GetProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		return nil
	}
	f, err := seed.Default()
	if err != nil {
		return err
	}
	logger.Info("empty database, applying built-in seed")
	return seed.Apply(ctx, st, f)
}

func registerJobs(p *sync.Poller, cfg *model.AppConfig, st store.Store, issues *issue.Service, logger *slog.Logger) error {
	if !cfg.Remote.Enabled && !cfg.Mail.Enabled {
		return nil
	}
	creds, err := credential.Open()
	if err != nil {
		return err
	}

	if cfg.Remote.Enabled {
		token, err := creds.Get(cfg.Remote.TokenKey)
		if err != nil {
			return fmt.Errorf("remote import: %w (run 'issue-rest credential set %s')", err, cfg.Remote.TokenKey)
		}
		client := remote.NewClient(cfg.Remote.BaseURL, token)
		importer := remote.NewImporter(client, st, cfg.Remote.Projects, cfg.Remote.WorkflowID, logger)
		p.Register(importer, time.Duration(cfg.Remote.PollIntervalSec)*time.Second)
	}

	if cfg.Mail.Enabled {
		password, err := creds.Get(cfg.Mail.PasswordKey)
		if err != nil {
			return fmt.Errorf("mail intake: %w (run 'issue-rest credential set %s')", err, cfg.Mail.PasswordKey)
		}
		mailbox := mailin.NewIMAPMailbox(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, password, cfg.Mail.TLS)
		intake := mailin.NewIntake(mailbox, issues, st, cfg.Mail, logger)
		p.Register(intake, time.Duration(cfg.Mail.PollIntervalSec)*time.Second)
	}
	return nil
}
