package storefront

import (
	"net/http"

	"go.uber.org/zap"

	"FomoStore/internal/auth"
	"FomoStore/pkg/kit"
)

// logout records the token id locally before the auth service revokes it,
// so the storefront stops accepting the token without asking auth.
func logout(jwt *auth.TokenMaker, deny *auth.Denylist, authProxy http.Handler, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := kit.BearerToken(r); ok {
			if c, err := jwt.Verify(tok, deny); err == nil {
				deny.RevokeClaims(c)
				log.Debug("token revoked at edge", zap.String("user_id", c.UserID))
			}
		}
		authProxy.ServeHTTP(w, r)
	}
}
