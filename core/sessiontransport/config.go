package sessiontransport

import (
	"net/http"

	"github.com/caarlos0/env/v11"
)

// Config provides environment-based configuration for the cookie transport.
type Config struct {
	// CookieName is the name of the session identifier cookie.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"session_id"`

	// CookiePath is the cookie path attribute.
	CookiePath string `env:"SESSION_COOKIE_PATH" envDefault:"/"`

	// CookieDomain is the cookie domain attribute (empty = host-only).
	CookieDomain string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`

	// CookieSecure marks the cookie as HTTPS-only.
	CookieSecure bool `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	// CookieHTTPOnly hides the cookie from client-side scripts.
	CookieHTTPOnly bool `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"true"`

	// CookieSameSite is the SameSite policy: "lax", "strict", or "none".
	CookieSameSite string `env:"SESSION_COOKIE_SAME_SITE" envDefault:"lax"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CookieName:     "session_id",
		CookiePath:     "/",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		CookieSameSite: "lax",
	}
}

// LoadConfig parses the transport configuration from environment variables.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

// sameSite maps the configured policy name to its http constant.
// Unknown values fall back to Lax.
func (c Config) sameSite() http.SameSite {
	switch c.CookieSameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
