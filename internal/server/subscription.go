package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCurrentSubscription answers with the caller's current subscription, or
// a null subscription when they have none.
func (s *Server) GetCurrentSubscription(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	sub, err := s.subscriptionSvc.GetCurrent(c.Request.Context(), userID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}
