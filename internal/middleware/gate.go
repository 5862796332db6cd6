package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lsls-dev/school-portal-api/internal/models"
)

// Session describes what the gate knows about the incoming request's
// session cookie before deciding where the request may go.
type Session struct {
	Present bool
	Valid   bool
	Role    models.Role
}

// Decision is the outcome of the gate's policy table for one request.
type Decision struct {
	Allow        bool
	RedirectTo   string
	ClearSession bool
}

const loginPath = "/login"

var authPages = map[string]struct{}{
	"/login":  {},
	"/signup": {},
}

// roleNamespaces maps a top level path segment to the role that owns it.
var roleNamespaces = map[string]models.Role{
	"admin":   models.RoleAdmin,
	"teacher": models.RoleTeacher,
	"student": models.RoleStudent,
	"parent":  models.RoleParent,
}

// Decide applies the gate policy to a page path. Rules are ordered:
// the landing page and auth pages stay open but bounce signed-in users
// to their dashboard, requests
// without a usable session go to login with a callback, and a signed-in
// user that wanders into another role's namespace is sent home. A
// cookie that fails validation is cleared rather than trusted.
func Decide(path string, session Session) Decision {
	invalid := session.Present && !session.Valid

	_, authPage := authPages[path]
	if authPage || path == "/" {
		if session.Valid {
			return Decision{RedirectTo: session.Role.HomePath()}
		}
		return Decision{Allow: true, ClearSession: invalid}
	}

	if !session.Valid {
		target := loginPath + "?callbackUrl=" + url.QueryEscape(path)
		return Decision{RedirectTo: target, ClearSession: invalid}
	}

	if owner, ok := roleNamespaces[firstSegment(path)]; ok && owner != session.Role {
		return Decision{RedirectTo: session.Role.HomePath()}
	}

	return Decision{Allow: true}
}

func firstSegment(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// Gate enforces the page level access policy using the session cookie.
// API routes carry their own JWT middleware and never pass through here.
func Gate(validator TokenValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := Session{}
		if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
			session.Present = true
			if claims, err := validator.ValidateToken(cookie); err == nil {
				session.Valid = true
				session.Role = claims.Role
			}
		}

		decision := Decide(c.Request.URL.Path, session)
		if decision.ClearSession {
			c.SetCookie(cookieName, "", -1, "/", "", false, true)
		}
		if decision.Allow {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, decision.RedirectTo)
		c.Abort()
	}
}
