package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nhle/issue-rest/internal/errcol"
	"github.com/nhle/issue-rest/internal/model"
	"github.com/nhle/issue-rest/internal/store"
)

func (s *Server) handleGetProjects(c *gin.Context) {
	projects, err := s.store.GetProjects(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]*ProjectBean, 0, len(projects))
	for i := range projects {
		bean, err := s.projectBean(c.Request.Context(), &projects[i])
		if err != nil {
			s.writeError(c, err)
			return
		}
		out = append(out, bean)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetProject(c *gin.Context) {
	idOrKey := c.Param("idOrKey")

	var (
		p   *model.Project
		err error
	)
	if id, perr := strconv.ParseInt(idOrKey, 10, 64); perr == nil {
		p, err = s.store.GetProject(c.Request.Context(), id)
	} else {
		p, err = s.store.GetProjectByKey(c.Request.Context(), idOrKey)
	}
	if store.IsNotFound(err) {
		s.writeError(c, errcol.Of("No project could be found with key '"+idOrKey+"'.", errcol.NotFound))
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}

	bean, err := s.projectBean(c.Request.Context(), p)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bean)
}
