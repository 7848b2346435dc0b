package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medcloud/tenantgate/internal/core/credential"
	"github.com/medcloud/tenantgate/internal/core/domain"
)

// Cookies names the credential cookies and how session cookies are issued.
type Cookies struct {
	TicketName  string
	SessionName string
	SessionTTL  time.Duration
	Secure      bool
	Signer      *credential.CookieSigner
}

func (k Cookies) value(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// TicketCookie returns the raw ticket cookie, or an empty string.
func (k Cookies) TicketCookie(c echo.Context) string { return k.value(c, k.TicketName) }

// SessionCookie returns the signed session cookie, or an empty string.
func (k Cookies) SessionCookie(c echo.Context) string { return k.value(c, k.SessionName) }

// SetTicket writes the ticket cookie expiring with the ticket itself.
func (k Cookies) SetTicket(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     k.TicketName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetSession writes the signed session cookie for sess.
func (k Cookies) SetSession(c echo.Context, sess *domain.Session) {
	c.SetCookie(&http.Cookie{
		Name:     k.SessionName,
		Value:    k.Signer.Sign(sess.ID),
		Path:     "/",
		MaxAge:   int(k.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTicket expires the ticket cookie.
func (k Cookies) ClearTicket(c echo.Context) { k.clear(c, k.TicketName) }

// ClearSession expires the session cookie.
func (k Cookies) ClearSession(c echo.Context) { k.clear(c, k.SessionName) }

func (k Cookies) clear(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
