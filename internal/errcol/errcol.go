// Package errcol holds the accumulating error collection shared by the
// field-update pipeline and the REST resources.
package errcol

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

// Reason classifies why an error was recorded. The worst reason of a
// collection decides the HTTP status of the response.
type Reason string

const (
	ValidationFailed Reason = "VALIDATION_FAILED"
	NotFound         Reason = "NOT_FOUND"
	Forbidden        Reason = "FORBIDDEN"
	NotLoggedIn      Reason = "NOT_LOGGED_IN"
	Conflict         Reason = "CONFLICT"
	ServerError      Reason = "SERVER_ERROR"
)

// severity orders reasons from least to most severe.
var severity = map[Reason]int{
	ValidationFailed: 1,
	Conflict:         2,
	NotFound:         3,
	Forbidden:        4,
	NotLoggedIn:      5,
	ServerError:      6,
}

// Status returns the HTTP status code conventionally used for r.
func (r Reason) Status() int {
	switch r {
	case NotFound:
		return http.StatusNotFound
	case Forbidden:
		return http.StatusForbidden
	case NotLoggedIn:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	case ServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Collection accumulates general messages and field-scoped errors.
// The zero value is ready to use.
type Collection struct {
	messages []string
	errors   map[string]string
	reasons  map[Reason]struct{}
}

// New returns an empty collection.
func New() *Collection {
	return &Collection{}
}

// AddErrorMessage records a message that is not tied to a field.
func (c *Collection) AddErrorMessage(msg string, reasons ...Reason) {
	c.messages = append(c.messages, msg)
	c.addReasons(reasons)
}

// AddError records a message against a field id. A second error for the
// same field replaces the first.
func (c *Collection) AddError(field, msg string, reasons ...Reason) {
	if c.errors == nil {
		c.errors = make(map[string]string)
	}
	c.errors[field] = msg
	c.addReasons(reasons)
}

// AddReason records a reason without a message.
func (c *Collection) AddReason(r Reason) {
	c.addReasons([]Reason{r})
}

// AddAll merges other into c verbatim.
func (c *Collection) AddAll(other *Collection) {
	if other == nil {
		return
	}
	c.messages = append(c.messages, other.messages...)
	for k, v := range other.errors {
		c.AddError(k, v)
	}
	for r := range other.reasons {
		c.AddReason(r)
	}
}

func (c *Collection) addReasons(reasons []Reason) {
	if len(reasons) == 0 {
		return
	}
	if c.reasons == nil {
		c.reasons = make(map[Reason]struct{})
	}
	for _, r := range reasons {
		c.reasons[r] = struct{}{}
	}
}

// HasAnyErrors reports whether any message or field error was recorded.
func (c *Collection) HasAnyErrors() bool {
	return c != nil && (len(c.messages) > 0 || len(c.errors) > 0)
}

// Messages returns a copy of the general messages in insertion order.
func (c *Collection) Messages() []string {
	if c == nil || len(c.messages) == 0 {
		return nil
	}
	return append([]string(nil), c.messages...)
}

// Errors returns a copy of the field-scoped errors.
func (c *Collection) Errors() map[string]string {
	if c == nil || len(c.errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// FieldError returns the error recorded for field, if any.
func (c *Collection) FieldError(field string) (string, bool) {
	if c == nil {
		return "", false
	}
	msg, ok := c.errors[field]
	return msg, ok
}

// Reasons returns the recorded reasons, most severe first.
func (c *Collection) Reasons() []Reason {
	if c == nil || len(c.reasons) == 0 {
		return nil
	}
	out := make([]Reason, 0, len(c.reasons))
	for r := range c.reasons {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return severity[out[i]] > severity[out[j]] })
	return out
}

// WorstReason returns the most severe reason, defaulting to
// ValidationFailed for collections that recorded none.
func (c *Collection) WorstReason() Reason {
	reasons := c.Reasons()
	if len(reasons) == 0 {
		return ValidationFailed
	}
	return reasons[0]
}

// Status returns the HTTP status for the worst reason.
func (c *Collection) Status() int {
	return c.WorstReason().Status()
}

// Error implements error so a collection can travel through error returns.
func (c *Collection) Error() string {
	parts := c.Messages()
	keys := make([]string, 0, len(c.errors))
	for k := range c.errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+": "+c.errors[k])
	}
	return strings.Join(parts, "; ")
}

// Body is the wire form of a collection.
type Body struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// Body returns the JSON body sent to REST clients.
func (c *Collection) Body() Body {
	b := Body{ErrorMessages: c.Messages(), Errors: c.Errors()}
	if b.ErrorMessages == nil {
		b.ErrorMessages = []string{}
	}
	if b.Errors == nil {
		b.Errors = map[string]string{}
	}
	return b
}

// MarshalJSON encodes the collection as its Body.
func (c *Collection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Body())
}

// FromBody rebuilds a collection from a decoded error body.
func FromBody(b Body, reasons ...Reason) *Collection {
	c := New()
	for _, m := range b.ErrorMessages {
		c.AddErrorMessage(m)
	}
	for k, v := range b.Errors {
		c.AddError(k, v)
	}
	c.addReasons(reasons)
	return c
}

// Of returns a collection holding a single general message.
func Of(msg string, reasons ...Reason) *Collection {
	c := New()
	c.AddErrorMessage(msg, reasons...)
	return c
}
