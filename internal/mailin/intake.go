package mailin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/nhle/issue-rest/internal/assembler"
	"github.com/nhle/issue-rest/internal/crossref"
	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

// maxSummary is the longest summary the summary field accepts.
const maxSummary = 255

// Mailbox is the source of incoming mail.
type Mailbox interface {
	Unseen(ctx context.Context) ([]Message, error)
	MarkSeen(ctx context.Context, uid uint32) error
}

// Issues is the part of the issue service the intake drives.
type Issues interface {
	Get(ctx context.Context, idOrKey string) (*model.Issue, error)
	Create(ctx context.Context, req assembler.Request, author string) (*model.Issue, error)
	Edit(ctx context.Context, idOrKey string, req assembler.Request, author string) error
}

// Users resolves senders to accounts.
type Users interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// Intake creates an issue per new mail thread and adds replies as comments
// to the issue whose key the subject mentions.
type Intake struct {
	mailbox Mailbox
	issues  Issues
	users   Users
	cfg     model.MailConfig
	logger  *slog.Logger
}

// NewIntake wires an intake. cfg.Project and cfg.IssueType select where
// new issues go; cfg.Reporter is used for unknown senders.
func NewIntake(mailbox Mailbox, issues Issues, users Users, cfg model.MailConfig, logger *slog.Logger) *Intake {
	return &Intake{mailbox: mailbox, issues: issues, users: users, cfg: cfg, logger: logger}
}

// Name identifies the intake as a poller job.
func (in *Intake) Name() string { return "mail-intake" }

// Run handles every unseen message. Messages that cannot be turned into
// an issue change stay unseen and are retried on the next run.
func (in *Intake) Run(ctx context.Context) error {
	msgs, err := in.mailbox.Unseen(ctx)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		log := in.logger.With("uid", msg.UID, "from", msg.FromAddr, "subject", msg.Subject)
		key, err := in.handle(ctx, msg)
		if err != nil {
			var coll *errcol.Collection
			if errors.As(err, &coll) {
				log.Warn("mail rejected", "errors", coll.Error())
				continue
			}
			return fmt.Errorf("handling message %d: %w", msg.UID, err)
		}
		if err := in.mailbox.MarkSeen(ctx, msg.UID); err != nil {
			return err
		}
		log.Info("mail processed", "issue", key)
	}
	return nil
}

func (in *Intake) handle(ctx context.Context, msg Message) (string, error) {
	author, err := in.author(ctx, msg.FromAddr)
	if err != nil {
		return "", err
	}

	if key, ok := crossref.FirstKey(map[string]bool{in.cfg.Project: true}, msg.Subject); ok {
		_, err := in.issues.Get(ctx, key)
		switch {
		case err == nil:
			return key, in.comment(ctx, key, msg, author)
		case !isNotFound(err):
			return "", err
		}
	}

	req, err := in.createRequest(msg)
	if err != nil {
		return "", err
	}
	is, err := in.issues.Create(ctx, req, author)
	if err != nil {
		return "", err
	}
	return is.Key, nil
}

func (in *Intake) comment(ctx context.Context, key string, msg Message, author string) error {
	var req assembler.Request
	if err := req.AddOperation(model.FieldComment, "add", map[string]string{"body": msg.Body()}); err != nil {
		return err
	}
	return in.issues.Edit(ctx, key, req, author)
}

func (in *Intake) createRequest(msg Message) (assembler.Request, error) {
	var (
		req assembler.Request
		err error
	)
	set := func(id string, value any) {
		if err == nil {
			err = req.SetField(id, value)
		}
	}
	set(model.FieldProject, map[string]string{"key": in.cfg.Project})
	set(model.FieldIssueType, map[string]string{"name": in.cfg.IssueType})
	set(model.FieldSummary, summary(msg.Subject))
	if body := msg.Body(); body != "" {
		set(model.FieldDescription, body)
	}
	return req, err
}

// author maps the sender to an active user, falling back to the
// configured reporter.
func (in *Intake) author(ctx context.Context, addr string) (string, error) {
	if addr != "" {
		u, err := in.users.GetUserByEmail(ctx, addr)
		if err == nil {
			return u.Name, nil
		}
		if !store.IsNotFound(err) {
			return "", err
		}
	}
	if in.cfg.Reporter == "" {
		return "", errcol.Of(fmt.Sprintf("Sender '%s' is not a known user.", addr), errcol.ValidationFailed)
	}
	return in.cfg.Reporter, nil
}

func summary(subject string) string {
	s := strings.Join(strings.Fields(subject), " ")
	if s == "" {
		return "(no subject)"
	}
	if utf8.RuneCountInString(s) > maxSummary {
		s = string([]rune(s)[:maxSummary])
	}
	return s
}

func isNotFound(err error) bool {
	var coll *errcol.Collection
	return errors.As(err, &coll) && coll.WorstReason() == errcol.NotFound
}
