package field

import (
	"context"
	"strings"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
)

// commentField only accepts add; every add queues a new comment.
type commentField struct {
	base
}

func newCommentField() *commentField {
	return &commentField{base: base{id: model.FieldComment, name: "Comment", schema: Schema{Type: "comments-page", System: model.FieldComment}}}
}

func (f *commentField) SupportedOperations() []string { return []string{OpAdd} }

func (f *commentField) Apply(_ context.Context, _ IssueContext, params *Params, op Operation) *errcol.Collection {
	v, err := commentSchema.decode(op.Value)
	if err != nil {
		return fieldError(f.id, err.Error())
	}
	body, _ := property(v, "body")
	if strings.TrimSpace(body) == "" {
		return fieldError(f.id, "Comment body can not be empty!")
	}
	params.Comments = append(params.Comments, body)
	return nil
}
