package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/coursepass/internal/entitlement/domain"
)

// GetUserAccess reports whether a user may open a course. Without
// course_id only a subscription can grant access.
func (s *Server) GetUserAccess(c *gin.Context) {
	courseID, err := parseOptionalSnowflakeID(c.Query("course_id"))
	if err != nil {
		AbortWithError(c, entitlementdomain.ErrInvalidCourseID)
		return
	}

	var rawCourseID string
	if courseID != nil {
		rawCourseID = courseID.String()
	}

	decision, err := s.entitlementSvc.Evaluate(c.Request.Context(), c.Param("id"), rawCourseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}
