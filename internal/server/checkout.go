package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/coursepass/internal/checkout/domain"
)

func (s *Server) CreateCourseCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	session, err := s.checkoutSvc.CreateCourseCheckout(c.Request.Context(), checkoutdomain.CourseCheckoutRequest{
		UserID:   userID.String(),
		CourseID: c.Param("courseId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) CreatePlanCheckout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	session, err := s.checkoutSvc.CreatePlanCheckout(c.Request.Context(), checkoutdomain.PlanCheckoutRequest{
		UserID: userID.String(),
		PlanID: c.Param("planId"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (s *Server) CreateBillingPortal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	url, err := s.checkoutSvc.CreateBillingPortal(c.Request.Context(), userID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
