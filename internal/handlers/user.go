package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/auth"
	"propertyhub/internal/favorites"
	"propertyhub/internal/users"
)

// UserHandler serves accounts, sessions and favorites
type UserHandler struct {
	users         *users.Service
	favorites     *favorites.Service
	authn         *auth.Authenticator
	secureCookies bool
	logger        *zap.Logger
}

// NewUserHandler creates a user handler
func NewUserHandler(us *users.Service, favs *favorites.Service, authn *auth.Authenticator, secureCookies bool, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:         us,
		favorites:     favs,
		authn:         authn,
		secureCookies: secureCookies,
		logger:        logger.Named("http.users"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and starts a session
func (h *UserHandler) Register(c *gin.Context) {
	var req users.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err))
		return
	}
	session, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.authn.SetSessionCookie(c, session.Token, h.secureCookies)
	c.JSON(http.StatusCreated, session)
}

// Login starts a session
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err))
		return
	}
	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.authn.SetSessionCookie(c, session.Token, h.secureCookies)
	c.JSON(http.StatusOK, session)
}

// Logout clears the session cookie
func (h *UserHandler) Logout(c *gin.Context) {
	auth.ClearSessionCookie(c, h.secureCookies)
	c.Status(http.StatusNoContent)
}

// Profile returns the session user
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.users.Profile(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile edits the session user's contact details
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var upd users.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: invalid request body: %v", apperr.ErrValidation, err))
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), auth.Actor(c), upd)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Favorites lists the properties the session user follows
func (h *UserHandler) Favorites(c *gin.Context) {
	list, err := h.favorites.List(c.Request.Context(), auth.Actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"properties": list, "count": len(list)})
}

// AddFavorite follows a property
func (h *UserHandler) AddFavorite(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.favorites.Add(c.Request.Context(), auth.Actor(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemoveFavorite unfollows a property
func (h *UserHandler) RemoveFavorite(c *gin.Context) {
	id, err := paramID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.favorites.Remove(c.Request.Context(), auth.Actor(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
