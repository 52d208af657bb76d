package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	coursedomain "github.com/smallbiznis/coursepass/internal/course/domain"
	"github.com/smallbiznis/coursepass/pkg/db/pagination"
)

func (s *Server) ListCourses(c *gin.Context) {
	var query struct {
		pagination.Pagination
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.courseSvc.List(c.Request.Context(), coursedomain.ListRequest{
		Pagination: query.Pagination,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Courses, "page_info": resp.PageInfo})
}

func (s *Server) GetCourse(c *gin.Context) {
	course, err := s.courseSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": course})
}
