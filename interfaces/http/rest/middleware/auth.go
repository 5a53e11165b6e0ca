package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"socialcore/pkg/auth"
	"socialcore/pkg/common"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

// UserIDHeader carries the caller's identity, set by the API Gateway authorizer.
const UserIDHeader = "X-User-ID"

// Identity requires the authorizer's user header and stores it in the request context.
func Identity(errs *pkgerrors.ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("missing "+UserIDHeader+" header"))
				return
			}
			ctx, info := common.EnsureRequestInfo(r.Context())
			info.UserID = userID
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit applies the per-user limiter. Limiter errors are logged and the request
// proceeds.
func RateLimit(limiter auth.RateLimiter, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := common.CallerID(r.Context())
			decision, err := limiter.Allow(r.Context(), userID)
			if err != nil {
				logger.Warn("Rate limiter unavailable", zap.String("userID", userID), zap.Error(err))
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(decision.Limit, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
