package remote

import "encoding/json"

// CreateMetaResponse is the body of GET /rest/api/2/issue/createmeta with
// expand=projects.issuetypes.fields.
type CreateMetaResponse struct {
	Projects []MetaProject `json:"projects"`
}

// MetaProject is one project of the create metadata.
type MetaProject struct {
	ID         string          `json:"id"`
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	IssueTypes []MetaIssueType `json:"issuetypes"`
}

// MetaIssueType is an issue type with the fields of its create screen, in
// screen order.
type MetaIssueType struct {
	ID          string
	Name        string
	Description string
	Subtask     bool
	Fields      []MetaField
}

// UnmarshalJSON keeps the document order of the "fields" object, which is
// the order of the remote create screen.
func (it *MetaIssueType) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Subtask     bool            `json:"subtask"`
		Fields      json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = MetaIssueType{ID: raw.ID, Name: raw.Name, Description: raw.Description, Subtask: raw.Subtask}
	if len(raw.Fields) == 0 || string(raw.Fields) == "null" {
		return nil
	}
	return decodeFields(raw.Fields, func(id string, value json.RawMessage) error {
		var f MetaField
		if err := json.Unmarshal(value, &f); err != nil {
			return err
		}
		f.ID = id
		it.Fields = append(it.Fields, f)
		return nil
	})
}

// MetaField describes one field of a create screen.
type MetaField struct {
	ID            string        `json:"-"`
	Name          string        `json:"name"`
	Required      bool          `json:"required"`
	Schema        FieldSchema   `json:"schema"`
	AllowedValues []AllowedItem `json:"allowedValues,omitempty"`
}

// FieldSchema is the type description of a field.
type FieldSchema struct {
	Type     string `json:"type"`
	Items    string `json:"items,omitempty"`
	System   string `json:"system,omitempty"`
	Custom   string `json:"custom,omitempty"`
	CustomID int64  `json:"customId,omitempty"`
}

// AllowedItem is an allowed value of an option field.
type AllowedItem struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Priority is an entry of GET /rest/api/2/priority.
type Priority struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreatedIssue is the body of a successful create.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}
