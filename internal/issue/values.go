package issue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/issue-rest/internal/model"
)

// applyValues copies assembled parameter values onto the issue.
func applyValues(is *model.Issue, values map[string]any) error {
	for id, v := range values {
		if model.IsCustomField(id) {
			if is.CustomFields == nil {
				is.CustomFields = make(map[string]any)
			}
			if v == nil {
				delete(is.CustomFields, id)
			} else {
				is.CustomFields[id] = v
			}
			continue
		}

		var ok bool
		switch id {
		case model.FieldSummary:
			is.Summary, ok = v.(string)
		case model.FieldDescription:
			is.Description, ok = v.(string)
		case model.FieldEnvironment:
			is.Environment, ok = v.(string)
		case model.FieldPriority:
			is.PriorityID, ok = v.(string)
		case model.FieldResolution:
			is.ResolutionID, ok = v.(string)
		case model.FieldAssignee:
			is.Assignee, ok = v.(string)
		case model.FieldReporter:
			is.Reporter, ok = v.(string)
		case model.FieldLabels:
			is.Labels, ok = v.([]string)
		case model.FieldComponents:
			is.ComponentIDs, ok = v.([]int64)
		case model.FieldFixVersions:
			is.FixVersionIDs, ok = v.([]int64)
		case model.FieldVersions:
			is.AffectsVersionIDs, ok = v.([]int64)
		case model.FieldDueDate:
			is.DueDate, ok = v.(*time.Time)
		default:
			return fmt.Errorf("no issue column for field %s", id)
		}
		if !ok {
			return fmt.Errorf("field %s: unexpected value type %T", id, v)
		}
	}
	return nil
}

// changedFields lists the provided fields whose value differs between
// before and after, sorted by id.
func changedFields(before, after *model.Issue, values map[string]any) []string {
	var out []string
	for id := range values {
		b, _ := before.FieldValue(id)
		a, _ := after.FieldValue(id)
		if formatValue(b) != formatValue(a) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func changeItem(id string, before, after *model.Issue) model.ChangeItem {
	b, _ := before.FieldValue(id)
	a, _ := after.FieldValue(id)
	return model.ChangeItem{Field: id, From: formatValue(b), To: formatValue(a)}
}

// formatValue renders a canonical field value for history and emptiness
// checks.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, " ")
	case []int64:
		parts := make([]string, len(t))
		for i, n := range t {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, ", ")
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(model.DateLayout)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
