package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/errs"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/auth"
)

const ctxUserID = "user_id"

// RequireAuth verifies the Bearer credential and stores the user ID in
// the gin context for downstream handlers.
func RequireAuth(verifier *auth.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "missing credential", "code": errs.CodeAuthError})
			return
		}
		id, err := verifier.Verify(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"error": "invalid credential", "code": errs.CodeAuthError})
			return
		}
		c.Set(ctxUserID, id.UserID)
		c.Next()
	}
}

// bearerToken pulls the credential from the Authorization header, falling
// back to a token query parameter (the form the WS handshake uses).
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
