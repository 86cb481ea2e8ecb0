package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists the storefront origins. Empty or "*" allows any.
	AllowOrigins []string
	// AllowHeaders is sent on preflight. When empty the requested headers
	// are echoed.
	AllowHeaders []string
	// AllowCredentials lets the browser send the session cookie. A
	// credentialed wildcard echoes the request origin instead of "*".
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds; zero omits it.
	MaxAge int
}

const corsMethods = "GET, POST, OPTIONS"

type corsPolicy struct {
	any     bool
	origins map[string]string // lowercased -> configured
	headers string
	creds   bool
	maxAge  string
}

// CORS answers preflight requests and decorates responses to allowed
// origins. Origins are matched case-insensitively.
func CORS(cfg CORSConfig) Middleware {
	p := corsPolicy{
		any:     len(cfg.AllowOrigins) == 0,
		origins: make(map[string]string, len(cfg.AllowOrigins)),
		headers: strings.Join(cfg.AllowHeaders, ", "),
		creds:   cfg.AllowCredentials,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(o)] = o
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if !p.any || p.creds {
				h.Add("Vary", "Origin")
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, ok := p.allow(origin)
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if ok {
					p.decorate(h, allowed)
					h.Set("Access-Control-Allow-Methods", corsMethods)
					if headers := p.headers; headers != "" {
						h.Set("Access-Control-Allow-Headers", headers)
					} else if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if ok {
				p.decorate(h, allowed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allow returns the Access-Control-Allow-Origin value for origin.
func (p corsPolicy) allow(origin string) (string, bool) {
	if configured, ok := p.origins[strings.ToLower(origin)]; ok {
		return configured, true
	}
	switch {
	case p.any && p.creds:
		return origin, true
	case p.any:
		return "*", true
	default:
		return "", false
	}
}

func (p corsPolicy) decorate(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	if p.creds {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}
