package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resumegen-backend/internal/shared/server/middleware"
	"resumegen-backend/internal/shared/server/respond"
)

// Handler exposes user endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches user routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/me", h.me)
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Identity came from a valid token but was never persisted;
			// answer from the claims so first-time sessions still work.
			respond.JSON(c, http.StatusOK, gin.H{
				"id":               userID,
				"email":            middleware.UserEmailFromContext(c),
				"fullName":         middleware.UserNameFromContext(c),
				"pictureUrl":       middleware.UserPictureFromContext(c),
				"subscriptionPlan": "free",
			})
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch user", nil)
		return
	}
	respond.OK(c, user)
}
