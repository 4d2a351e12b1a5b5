// Package mailin turns mail in an IMAP inbox into issues and comments.
package mailin

import "time"

// Message is an unseen mail with its decoded body.
type Message struct {
	UID       uint32
	MessageID string
	Subject   string
	FromName  string
	FromAddr  string
	Date      time.Time
	TextBody  string
	HTMLBody  string

	// Attachments lists attachment file names. Content is not kept.
	Attachments []string
}

// Body returns the text body, falling back to the HTML body.
func (m Message) Body() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	return m.HTMLBody
}
