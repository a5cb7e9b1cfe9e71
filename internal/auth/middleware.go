package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propertyhub/internal/approval"
	"propertyhub/internal/models"
)

// SessionCookie is the cookie carrying the session token
const SessionCookie = "session"

const actorKey = "actor"

// UserFinder loads the account behind a token
type UserFinder interface {
	FindUserByID(ctx context.Context, id uint) (*models.User, error)
}

// Authenticator turns request credentials into an approval.Actor. The
// admin flag is read from the account on every request so demotions take
// effect before the token expires.
type Authenticator struct {
	issuer *TokenIssuer
	users  UserFinder
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(issuer *TokenIssuer, users UserFinder) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Optional resolves the actor when credentials are present and continues
// as a guest otherwise. Invalid credentials are treated as absent.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actor := a.resolve(c); actor != nil {
			c.Set(actorKey, actor)
		}
		c.Next()
	}
}

// Required rejects requests without a valid session
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := a.resolve(c)
		if actor == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// AdminOnly must run after Required
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !approval.Decide(Actor(c)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
			return
		}
		c.Next()
	}
}

// Actor returns the request actor, or nil for guests
func Actor(c *gin.Context) *approval.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*approval.Actor)
	return actor
}

// SetSessionCookie writes the session token as an HTTP-only cookie
func (a *Authenticator) SetSessionCookie(c *gin.Context, token string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(a.issuer.TTL().Seconds()), "/", "", secure, true)
}

// ClearSessionCookie expires the session cookie
func ClearSessionCookie(c *gin.Context, secure bool) {
	c.SetCookie(SessionCookie, "", -1, "/", "", secure, true)
}

func (a *Authenticator) resolve(c *gin.Context) *approval.Actor {
	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		token, _ = c.Cookie(SessionCookie)
	}
	if token == "" {
		return nil
	}

	claims, err := a.issuer.Verify(token)
	if err != nil {
		return nil
	}
	user, err := a.users.FindUserByID(c.Request.Context(), claims.UserID)
	if err != nil || user == nil || !user.IsActive {
		return nil
	}
	return &approval.Actor{UserID: user.ID, Email: user.Email, Admin: user.Admin}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
