package handlers

import (
	"net/http"
	"time"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

// CookiePolicy controls the attributes of the session cookies.
type CookiePolicy struct {
	Secure   bool
	SameSite http.SameSite
}

func (p CookiePolicy) sameSite() http.SameSite {
	if p.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return p.SameSite
}

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens, policy CookiePolicy) {
	setCookie(w, middleware.AccessTokenCookie, tokens.AccessToken, tokens.AccessExpiresAt, policy)
	setCookie(w, refreshTokenCookie, tokens.RefreshToken, tokens.RefreshExpiresAt, policy)
}

func setCookie(w http.ResponseWriter, name, value string, expires time.Time, policy CookiePolicy) {
	if value == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires.UTC(),
		HttpOnly: true,
		Secure:   policy.Secure,
		SameSite: policy.sameSite(),
	})
}

func clearSessionCookies(w http.ResponseWriter, policy CookiePolicy) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0).UTC(),
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   policy.Secure,
			SameSite: policy.sameSite(),
		})
	}
}
