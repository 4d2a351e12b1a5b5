package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nhle/issue-rest/internal/field"
)

// FieldValue is one entry of a request's "fields" object.
type FieldValue struct {
	ID    string
	Value json.RawMessage
}

// FieldUpdate is one entry of a request's "update" object.
type FieldUpdate struct {
	ID         string
	Operations []field.Operation
}

// TransitionRef names a workflow action by id.
type TransitionRef struct {
	ID string `json:"id"`
}

// UnmarshalJSON accepts the id as a JSON string or number.
func (t *TransitionRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.ID = strings.Trim(string(bytes.TrimSpace(raw.ID)), `"`)
	if t.ID == "null" {
		t.ID = ""
	}
	return nil
}

// Request is a client's field-update payload. Fields and Update keep the
// order in which ids appear in the JSON document.
type Request struct {
	Fields          []FieldValue
	Update          []FieldUpdate
	Transition      *TransitionRef
	HistoryMetadata json.RawMessage
}

// Field returns the raw value of a "fields" entry.
func (r Request) Field(id string) (json.RawMessage, bool) {
	for _, f := range r.Fields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return nil, false
}

// SetField adds or replaces a "fields" entry, keeping its position.
func (r *Request) SetField(id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding field %s: %w", id, err)
	}
	for i := range r.Fields {
		if r.Fields[i].ID == id {
			r.Fields[i].Value = raw
			return nil
		}
	}
	r.Fields = append(r.Fields, FieldValue{ID: id, Value: raw})
	return nil
}

// AddOperation appends an operation to the "update" entry of id.
func (r *Request) AddOperation(id, op string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s operation of %s: %w", op, id, err)
	}
	for i := range r.Update {
		if r.Update[i].ID == id {
			r.Update[i].Operations = append(r.Update[i].Operations, field.Operation{Name: op, Value: raw})
			return nil
		}
	}
	r.Update = append(r.Update, FieldUpdate{ID: id, Operations: []field.Operation{{Name: op, Value: raw}}})
	return nil
}

// UnmarshalJSON decodes the payload, preserving key order of "fields" and
// "update". Unknown top-level keys are ignored.
func (r *Request) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return err
	}
	*r = Request{}

	if raw, ok := top["fields"]; ok && !isNull(raw) {
		err := decodeOrdered(raw, func(id string, value json.RawMessage) error {
			for i := range r.Fields {
				if r.Fields[i].ID == id {
					r.Fields[i].Value = value
					return nil
				}
			}
			r.Fields = append(r.Fields, FieldValue{ID: id, Value: value})
			return nil
		})
		if err != nil {
			return fmt.Errorf("decoding fields: %w", err)
		}
	}

	if raw, ok := top["update"]; ok && !isNull(raw) {
		err := decodeOrdered(raw, func(id string, value json.RawMessage) error {
			var ops []field.Operation
			if !isNull(value) {
				if err := json.Unmarshal(value, &ops); err != nil {
					return fmt.Errorf("operations of %s: %w", id, err)
				}
			}
			for i := range r.Update {
				if r.Update[i].ID == id {
					r.Update[i].Operations = ops
					return nil
				}
			}
			r.Update = append(r.Update, FieldUpdate{ID: id, Operations: ops})
			return nil
		})
		if err != nil {
			return fmt.Errorf("decoding update: %w", err)
		}
	}

	if raw, ok := top["transition"]; ok && !isNull(raw) {
		r.Transition = &TransitionRef{}
		if err := json.Unmarshal(raw, r.Transition); err != nil {
			return fmt.Errorf("decoding transition: %w", err)
		}
	}
	if raw, ok := top["historyMetadata"]; ok && !isNull(raw) {
		r.HistoryMetadata = raw
	}
	return nil
}

// MarshalJSON encodes the payload with "fields" and "update" in order.
func (r Request) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	sep := ""
	writeKey := func(k string) {
		buf.WriteString(sep)
		sep = ","
		key, _ := json.Marshal(k)
		buf.Write(key)
		buf.WriteByte(':')
	}

	if r.Fields != nil {
		writeKey("fields")
		buf.WriteByte('{')
		for i, f := range r.Fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.ID)
			buf.Write(key)
			buf.WriteByte(':')
			if isNull(f.Value) {
				buf.WriteString("null")
			} else {
				buf.Write(f.Value)
			}
		}
		buf.WriteByte('}')
	}

	if r.Update != nil {
		writeKey("update")
		buf.WriteByte('{')
		for i, u := range r.Update {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(u.ID)
			buf.Write(key)
			buf.WriteByte(':')
			ops, err := json.Marshal(u.Operations)
			if err != nil {
				return nil, err
			}
			buf.Write(ops)
		}
		buf.WriteByte('}')
	}

	if r.Transition != nil {
		writeKey("transition")
		t, err := json.Marshal(map[string]string{"id": r.Transition.ID})
		if err != nil {
			return nil, err
		}
		buf.Write(t)
	}
	if !isNull(r.HistoryMetadata) {
		writeKey("historyMetadata")
		buf.Write(r.HistoryMetadata)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrdered walks the members of a JSON object in document order.
func decodeOrdered(raw json.RawMessage, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected an object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected an object key")
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value of %s: %w", key, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func isNull(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}
