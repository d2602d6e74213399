package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
)

// SessionCookie names the cookie that binds a browser to its views.
const SessionCookie = "vac_session"

type sessionKey struct{}

// SessionIssuer provisions new browser sessions.
type SessionIssuer interface {
	CreateSession(ctx context.Context) chat.Session
}

// Session makes sure every request carries a browser session id, issuing a
// cookie when the request has none or an unparsable one.
func Session(issuer SessionIssuer, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if cookie, err := r.Cookie(SessionCookie); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = cookie.Value
				}
			}

			if sessionID == "" {
				sessionID = issuer.CreateSession(r.Context()).ID
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), sessionKey{}, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the browser session bound by Session, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
