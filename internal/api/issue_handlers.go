package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nhle/issue-rest/internal/assembler"
	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/meta"
	"github.com/nhle/issue-rest/internal/model"
)

// IssueRef is the body returned for a created issue.
type IssueRef struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// BulkError reports one rejected element of a bulk create.
type BulkError struct {
	Status              int         `json:"status"`
	ElementErrors       errcol.Body `json:"elementErrors"`
	FailedElementNumber int         `json:"failedElementNumber"`
}

// BulkResult is the body of POST /issue/bulk.
type BulkResult struct {
	Issues []IssueRef  `json:"issues"`
	Errors []BulkError `json:"errors"`
}

func (s *Server) issueRef(is *model.Issue) IssueRef {
	id := strconv.FormatInt(is.ID, 10)
	return IssueRef{ID: id, Key: is.Key, Self: fmt.Sprintf("%s%s/issue/%s", s.baseURL, BasePath, id)}
}

func decodeRequest(c *gin.Context, v any) error {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil {
		return errcol.Of("Could not parse request body: "+err.Error(), errcol.ValidationFailed)
	}
	return nil
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	var req assembler.Request
	if err := decodeRequest(c, &req); err != nil {
		s.writeError(c, err)
		return
	}

	is, err := s.issues.Create(c.Request.Context(), req, author(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.issueRef(is))
}

func (s *Server) handleCreateIssues(c *gin.Context) {
	var body struct {
		IssueUpdates []assembler.Request `json:"issueUpdates"`
	}
	if err := decodeRequest(c, &body); err != nil {
		s.writeError(c, err)
		return
	}

	created, failures, err := s.issues.BulkCreate(c.Request.Context(), body.IssueUpdates, author(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	out := BulkResult{Issues: []IssueRef{}, Errors: []BulkError{}}
	for _, is := range created {
		out.Issues = append(out.Issues, s.issueRef(is))
	}
	for _, f := range failures {
		out.Errors = append(out.Errors, BulkError{
			Status:              f.Errors.Status(),
			ElementErrors:       f.Errors.Body(),
			FailedElementNumber: f.Index,
		})
	}

	status := http.StatusCreated
	if len(created) == 0 && len(failures) > 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, out)
}

func (s *Server) handleGetIssue(c *gin.Context) {
	is, err := s.issues.Get(c.Request.Context(), c.Param("idOrKey"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	bean, err := s.issueBean(c.Request.Context(), is)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bean)
}

func (s *Server) handleEditIssue(c *gin.Context) {
	var req assembler.Request
	if err := decodeRequest(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.issues.Edit(c.Request.Context(), c.Param("idOrKey"), req, author(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteIssue(c *gin.Context) {
	deleteSubtasks := c.DefaultQuery("deleteSubtasks", "false") == "true"
	if err := s.issues.Delete(c.Request.Context(), c.Param("idOrKey"), deleteSubtasks); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// queryList accepts both repeated and comma separated query values.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func expands(c *gin.Context, what string) bool {
	for _, e := range queryList(c, "expand") {
		if e == what {
			return true
		}
	}
	return false
}

func (s *Server) handleCreateMeta(c *gin.Context) {
	cm, err := s.meta.CreateMeta(c.Request.Context(), meta.CreateMetaFilter{
		ProjectKeys:    queryList(c, "projectKeys"),
		ProjectIDs:     queryList(c, "projectIds"),
		IssueTypeIDs:   queryList(c, "issuetypeIds"),
		IssueTypeNames: queryList(c, "issuetypeNames"),
		ExpandFields:   expands(c, "projects.issuetypes.fields"),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cm)
}

func (s *Server) handleEditMeta(c *gin.Context) {
	is, err := s.issues.Get(c.Request.Context(), c.Param("idOrKey"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	em, err := s.meta.EditMeta(c.Request.Context(), is)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, em)
}

func (s *Server) handleGetTransitions(c *gin.Context) {
	var only *int
	if raw := c.Query("transitionId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(c, errcol.Of(fmt.Sprintf("Transition id '%s' must be an integer.", raw), errcol.ValidationFailed))
			return
		}
		only = &id
	}

	is, err := s.issues.Get(c.Request.Context(), c.Param("idOrKey"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	t, err := s.meta.Transitions(c.Request.Context(), is, only, expands(c, "transitions.fields"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDoTransition(c *gin.Context) {
	var req assembler.Request
	if err := decodeRequest(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.issues.Transition(c.Request.Context(), c.Param("idOrKey"), req, author(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
