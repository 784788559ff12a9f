package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/budget-tracker-go/internal/domain"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type contextKey string

const collectionKey contextKey = "collection"

// CollectionMiddleware validates the {coll} URL parameter and injects the
// collection into the request context.
func CollectionMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			coll, err := domain.ParseCollection(chi.URLParam(r, "coll"))
			if err != nil {
				logger.Debug("unknown collection requested",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusNotFound, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), collectionKey, coll)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CollectionFromContext returns the collection injected by CollectionMiddleware.
func CollectionFromContext(ctx context.Context) domain.Collection {
	v, _ := ctx.Value(collectionKey).(domain.Collection)
	return v
}
