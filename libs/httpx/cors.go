package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy lists the browser origins allowed to call the API and what they may send.
type CORSPolicy struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
}

// ClinicCORSPolicy is the policy of the back-office frontend: JSON calls carrying an
// Idempotency-Key, with the request id and replay marker readable by the page.
func ClinicCORSPolicy(origins []string) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, IdempotentReplayedHeader},
		MaxAge:         10 * time.Minute,
	}
}

type corsRules struct {
	anyOrigin bool
	origins   map[string]bool
	methods   string
	headers   string
	exposed   string
	maxAge    string
}

func (p CORSPolicy) compile() corsRules {
	c := corsRules{origins: map[string]bool{}}
	for _, o := range p.AllowedOrigins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch o {
		case "":
		case "*":
			c.anyOrigin = true
		default:
			c.origins[o] = true
		}
	}
	c.methods = joinHeaderList(p.AllowedMethods)
	c.headers = joinHeaderList(p.AllowedHeaders)
	c.exposed = joinHeaderList(p.ExposedHeaders)
	if s := int(p.MaxAge / time.Second); s > 0 {
		c.maxAge = strconv.Itoa(s)
	}
	return c
}

func (c corsRules) enabled() bool {
	return c.anyOrigin || len(c.origins) > 0
}

func (c corsRules) allows(origin string) bool {
	return c.anyOrigin || c.origins[strings.ToLower(origin)]
}

// WithCORS answers preflight requests itself and decorates actual requests from allowed
// origins. Without any allowed origin it is a no-op. A preflight from an unknown origin gets
// 403 so the browser never sends the real request.
func WithCORS(p CORSPolicy) Middleware {
	rules := p.compile()
	if !rules.enabled() {
		return nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if !rules.allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if rules.anyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}

			if !preflight {
				if rules.exposed != "" {
					h.Set("Access-Control-Expose-Headers", rules.exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			if rules.methods != "" {
				h.Set("Access-Control-Allow-Methods", rules.methods)
			}
			if rules.headers != "" {
				h.Set("Access-Control-Allow-Headers", rules.headers)
			}
			if rules.maxAge != "" {
				h.Set("Access-Control-Max-Age", rules.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func joinHeaderList(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}
