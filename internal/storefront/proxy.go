package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"FomoStore/internal/auth"
	"FomoStore/internal/order"
	"FomoStore/pkg/kit"
)

type ctxKey string

const claimsKey ctxKey = "claims"

func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(auth.Claims)
	return c, ok
}

// AuthJWT verifies the bearer token locally. Tokens revoked through this
// storefront's logout are rejected even though they have not expired.
func AuthJWT(jwt *auth.TokenMaker, deny *auth.Denylist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := jwt.Verify(tok, deny)
			if errors.Is(err, auth.ErrRevokedToken) {
				kit.WriteError(w, r, http.StatusUnauthorized, "token revoked", nil)
				return
			}
			if err != nil {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func NewReverseProxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("proxy target must be an absolute url: " + target)
	}

	p := httputil.NewSingleHostReverseProxy(u)
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream error",
			zap.String("upstream", u.Host),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", nil)
	}
	return p, nil
}

// InjectHeaders replaces any client supplied identity headers with the
// verified claims.
func InjectHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(order.HeaderUserID)
		r.Header.Del(order.HeaderUserRole)

		if c, ok := ClaimsFromContext(r.Context()); ok {
			r.Header.Set(order.HeaderUserID, c.UserID)
			if c.Role != "" {
				r.Header.Set(order.HeaderUserRole, c.Role)
			}
		}

		next.ServeHTTP(w, r)
	})
}
