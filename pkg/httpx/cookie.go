package httpx

import (
	"net/http"
	"strings"
	"time"
)

// AccessTokenCookie is the cookie the browser clients send the access token in.
const AccessTokenCookie = "access_token"

// CookieConfig controls the attributes of auth cookies.
type CookieConfig struct {
	Secure   bool
	SameSite bool // Strict when set, None otherwise
	Domain   string
}

// TokenCookie renders a Set-Cookie value for token expiring after
// expiresIn. Attribute order is fixed: clients in the field parse it.
func TokenCookie(name, token string, expiresIn time.Duration, cfg CookieConfig, now time.Time) string {
	return renderCookie(name, token, now.Add(expiresIn), cfg)
}

// ExpiredCookie renders a Set-Cookie value that clears name.
func ExpiredCookie(name string, cfg CookieConfig) string {
	return renderCookie(name, "deleted", time.Unix(0, 0), cfg)
}

// SetCookie appends a rendered cookie to the response headers.
func SetCookie(w http.ResponseWriter, cookie string) {
	w.Header().Add("Set-Cookie", cookie)
}

func renderCookie(name, value string, expires time.Time, cfg CookieConfig) string {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString(";Expires=")
	b.WriteString(expires.UTC().Format(http.TimeFormat))
	b.WriteString(";Path=/;HttpOnly")
	if cfg.Secure {
		b.WriteString(";Secure")
	}
	if cfg.SameSite {
		b.WriteString(";SameSite=Strict")
	} else {
		b.WriteString(";SameSite=None")
	}
	if cfg.Domain != "" {
		b.WriteString(";Domain=")
		b.WriteString(cfg.Domain)
	}
	return b.String()
}
