package mailin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"
)

// ErrAuth is returned when the IMAP server rejects the login.
var ErrAuth = errors.New("imap authentication failed")

// IMAPMailbox reads the INBOX of one account over IMAP.
type IMAPMailbox struct {
	host     string
	port     string
	username string
	password string
	tls      bool

	// limit caps the messages fetched per poll.
	limit int
}

// NewIMAPMailbox returns a mailbox. With tls false the connection is
// upgraded with STARTTLS.
func NewIMAPMailbox(host, port, username, password string, tls bool) *IMAPMailbox {
	return &IMAPMailbox{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		limit:    50,
	}
}

func (m *IMAPMailbox) connect() (*imapclient.Client, error) {
	addr := m.host + ":" + m.port

	var (
		client *imapclient.Client
		err    error
	)
	if m.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(m.username, m.password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w for %s: %v", ErrAuth, m.username, err)
	}
	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}
	return client, nil
}

// Unseen returns the oldest unseen messages of INBOX without marking them
// seen.
func (m *IMAPMailbox) Unseen(ctx context.Context) ([]Message, error) {
	client, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen, imap.FlagDeleted},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if m.limit > 0 && len(uids) > m.limit {
		uids = uids[:m.limit]
	}

	body := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{body},
	})
	defer fetchCmd.Close()

	var out []Message
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		out = append(out, messageFromBuffer(buf, buf.FindBodySection(body)))
	}
	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

// MarkSeen adds the \Seen flag to the message.
func (m *IMAPMailbox) MarkSeen(_ context.Context, uid uint32) error {
	client, err := m.connect()
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	err = client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil).Close()
	if err != nil {
		return fmt.Errorf("flagging message %d seen: %w", uid, err)
	}
	return nil
}

func messageFromBuffer(buf *imapclient.FetchMessageBuffer, raw []byte) Message {
	msg := Message{UID: uint32(buf.UID)}
	if env := buf.Envelope; env != nil {
		msg.MessageID = env.MessageID
		msg.Subject = env.Subject
		msg.Date = env.Date
		if len(env.From) > 0 {
			msg.FromName = env.From[0].Name
			msg.FromAddr = env.From[0].Addr()
		}
	}
	if raw != nil {
		msg.TextBody, msg.HTMLBody, msg.Attachments = parseBody(raw)
	}
	return msg
}

// parseBody extracts the text/plain and text/html parts and attachment
// names of an RFC 5322 message.
func parseBody(raw []byte) (text, html string, attachments []string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), "", nil
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") && text == "":
				text = strings.TrimSpace(string(data))
			case strings.HasPrefix(contentType, "text/html") && html == "":
				html = strings.TrimSpace(string(data))
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			attachments = append(attachments, name)
		}
	}
	return text, html, attachments
}
