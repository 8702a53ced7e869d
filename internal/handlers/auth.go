package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-relay/internal/apperror"
	"chat-relay/internal/logging"
	"chat-relay/internal/models"
)

// Authenticator is the account surface behind /register and /login.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth Authenticator
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(auth Authenticator) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func bindCredentials(c *gin.Context) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperror.Validation("body", "Invalid request body"), "")
		return req, false
	}
	return req, true
}

// Register creates an account.
func (h *AuthHandler) Register(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, "Error registering user")
		return
	}

	logging.FromContext(c.Request.Context()).Info("user registered", "user_id", user.ID, "username", user.Username)
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully"})
}

// Login exchanges credentials for a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	req, ok := bindCredentials(c)
	if !ok {
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, "Error logging in")
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
