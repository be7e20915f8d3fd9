package utils

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// NewRouter constructs the shared mux router with request logging. CORS is
// applied by api.Register, which owns the route set.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("[http] %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
