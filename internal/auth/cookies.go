package auth

import (
	"net/http"
	"time"
)

// TabCookieName is the cookie carrying the signed tab token
const TabCookieName = "admin_tab"

// TabHeaderName lets a client keep one console per browser tab when cookies are shared
const TabHeaderName = "X-Admin-Tab"

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
	MaxAge   int    // Seconds; 0 makes a browser-session cookie
}

// SetTabCookie stores the tab token in an httpOnly cookie
func SetTabCookie(w http.ResponseWriter, token string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     TabCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	if config.MaxAge > 0 {
		cookie.MaxAge = config.MaxAge
		cookie.Expires = time.Now().Add(time.Duration(config.MaxAge) * time.Second)
	}
	http.SetCookie(w, cookie)
}

// ClearTabCookie clears the tab cookie
func ClearTabCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     TabCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	}
	http.SetCookie(w, cookie)
}

// GetTabToken retrieves the tab token, preferring the header over the cookie
func GetTabToken(r *http.Request) (string, error) {
	if token := r.Header.Get(TabHeaderName); token != "" {
		return token, nil
	}
	cookie, err := r.Cookie(TabCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
