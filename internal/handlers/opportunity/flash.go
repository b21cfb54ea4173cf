// internal/handlers/opportunity/flash.go
package opportunity

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const flashCookie = "flash"

// setFlash stores a one-shot notice for the next rendered page.
func setFlash(c *gin.Context, message string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash reads and clears the pending notice.
func takeFlash(c *gin.Context) string {
	raw, err := c.Cookie(flashCookie)
	if err != nil || raw == "" {
		return ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:   flashCookie,
		Path:   "/",
		MaxAge: -1,
	})
	msg, err := url.QueryUnescape(raw)
	if err != nil {
		return ""
	}
	return msg
}

// safeRedirect accepts only same-site paths so ?next= cannot bounce
// visitors elsewhere.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	return target
}

// referrerOr is the page the request came from, when it belongs to this site.
func referrerOr(c *gin.Context, fallback string) string {
	ref := c.Request.Referer()
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fallback
	}
	if u.Host != "" && u.Host != c.Request.Host {
		return fallback
	}
	path := u.EscapedPath()
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return safeRedirect(path, fallback)
}
