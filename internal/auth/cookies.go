package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieConfig carries the deployment-dependent cookie attributes.
// SameSite must be None (with Secure) for cross-site OAuth redirects.
type CookieConfig struct {
	Secure   bool // true in production
	SameSite http.SameSite
}

// SetAuthCookies writes both token cookies. Max-Age mirrors each token's
// TTL so the browser drops the cookie when the token dies.
func SetAuthCookies(w http.ResponseWriter, accessToken, refreshToken string, cfg CookieConfig, accessTTL, refreshTTL time.Duration) {
	SetAccessTokenCookie(w, accessToken, cfg, accessTTL)
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// SetAccessTokenCookie resets only the access token cookie, used by the
// refresh flow where the refresh token is not rotated.
func SetAccessTokenCookie(w http.ResponseWriter, accessToken string, cfg CookieConfig, accessTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearAuthCookies expires both token cookies.
func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.Secure,
			SameSite: cfg.SameSite,
		})
	}
}

// GetAccessTokenFromCookie reads the access token cookie.
func GetAccessTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// GetRefreshTokenFromCookie reads the refresh token cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, error) {
	c, err := r.Cookie(RefreshTokenCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
