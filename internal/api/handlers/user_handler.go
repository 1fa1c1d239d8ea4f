package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// UserHandler handles REST requests for users.
type UserHandler struct {
	userService services.IUserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.IUserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterUser handles POST /api/users/register. This is the identity
// resolver exposed directly: it finds or creates a user from a profile.
func (h *UserHandler) RegisterUser(c *gin.Context) {
	var profile models.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	user, err := h.userService.Resolve(c.Request.Context(), profile)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "User resolved", user)
}

// ListUsers handles GET /api/users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondList(c, users, len(users))
}

// GetUserByContact handles GET /api/users/contact/:contact.
func (h *UserHandler) GetUserByContact(c *gin.Context) {
	contact := c.Param("contact")
	if !models.IsValidContact(contact) {
		respondError(c, &models.ValidationError{Field: "contact", Reason: "must be a 10-digit number"})
		return
	}
	user, err := h.userService.FindByContact(c.Request.Context(), contact)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", user)
}

// GetUserHistory handles GET /api/users/:id/history.
func (h *UserHandler) GetUserHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.userService.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "", history)
}
