package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/auth"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/config"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/models"
	"github.com/Sundaram-65/Campus-marketplace-Fresh/internal/services"
)

// AuthHandler handles signup, login and logout.
type AuthHandler struct {
	userService services.IUserService
	cfg         *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService services.IUserService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{userService: userService, cfg: cfg}
}

type signupRequest struct {
	Name     string `json:"name"`
	RollNo   string `json:"rollNo"`
	Contact  string `json:"contact"`
	Hostel   string `json:"hostel"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) issueToken(c *gin.Context, user *models.User, message string, status int) {
	token, err := auth.GenerateJWT(user.ID.Hex(), user.IsAdmin, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		respondError(c, &models.DependencyError{Op: "issuing token", Err: err})
		return
	}
	respond(c, status, message, gin.H{"token": token, "user": user})
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	user, err := h.userService.CreateAccount(c.Request.Context(), models.Profile{
		Name:    req.Name,
		RollNo:  req.RollNo,
		Contact: req.Contact,
		Hostel:  req.Hostel,
		Email:   req.Email,
	}, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issueToken(c, user, "Account created", http.StatusCreated)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &models.ValidationError{Field: "body", Reason: "is not valid JSON"})
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(c, &models.ValidationError{Field: "email/password", Reason: "are required"})
		return
	}
	user, err := h.userService.VerifyCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.issueToken(c, user, "Logged in", http.StatusOK)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so this is
// a client-side discard acknowledged by the server.
func (h *AuthHandler) Logout(c *gin.Context) {
	respond(c, http.StatusOK, "Logged out", nil)
}
