package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"blogclone/pkg/session"

	"go.uber.org/zap"
)

var authRoutes = map[string]string{
	"/api/posts": http.MethodPost,
}

// protected reports whether the request needs a session. Reads are open;
// every write to /api/posts or /api/post/{id} requires a signed-in author.
func protected(r *http.Request) bool {
	if m, ok := authRoutes[r.URL.Path]; ok && m == r.Method {
		return true
	}

	return strings.HasPrefix(r.URL.Path, "/api/post/") && r.Method != http.MethodGet
}

func Auth(logger *zap.SugaredLogger, sm session.SessionManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !protected(r) {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sess, err := sm.Check(ctx, r)
		if err != nil {
			logger.Error(err.Error())
			w.Header().Set("Content-type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			errorBody, _ := json.Marshal(map[string]string{"message": "unauthorized"})
			w.Write(errorBody)

			return
		}

		ctx = context.WithValue(r.Context(), session.SessionKey, sess)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
