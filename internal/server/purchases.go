package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	purchasedomain "github.com/smallbiznis/coursepass/internal/purchase/domain"
)

// ListMyPurchases returns the caller's one-time course purchases.
func (s *Server) ListMyPurchases(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	purchases, err := s.purchaseRepo.ListByUser(c.Request.Context(), s.db, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if purchases == nil {
		purchases = []purchasedomain.Purchase{}
	}

	c.JSON(http.StatusOK, gin.H{"data": purchases})
}
