package auth

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Require returns middleware that admits only requests carrying a valid
// token of the given role. The token is read from the role's cookie, then
// from an "Authorization: Bearer" header. The identity is stored in the
// request context.
func Require(tokens *Tokens, role Role) func(http.Handler) http.Handler {
	cookie := UserCookie
	if role == RoleSeller {
		cookie = SellerCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r, cookie)
			if raw == "" {
				writeUnauthorized(w)
				return
			}
			id, err := tokens.Parse(raw)
			if err != nil || id.Role != role {
				zctx.From(r.Context()).Debug("Rejected token", zap.Error(err))
				writeUnauthorized(w)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			ctx = zctx.With(ctx, zap.String("subject", id.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request, cookie string) string {
	if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(ErrUnauthorized.Error())
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(e.Bytes())
}

// SetCookie writes a session cookie. An empty value with maxAge < 0 clears
// it.
func SetCookie(w http.ResponseWriter, name, value string, maxAge int, secure bool) {
	sameSite := http.SameSiteStrictMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
	})
}
