package api

import (
	"net/http"
	"net/http/pprof"

	"trailfetch/handlers"
	"trailfetch/internal/metrics"

	"github.com/gorilla/mux"
)

// localhostOnlyMiddleware restricts access to localhost requests only
func localhostOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		// Strip port if present
		for i := len(host) - 1; i >= 0; i-- {
			if host[i] == ':' {
				host = host[:i]
				break
			}
		}
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			http.Error(w, "Debug endpoints only accessible from localhost", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	processHandler *handlers.ProcessHandler,
	metaHandler *handlers.MetaHandler,
) {
	r.Use(corsMiddleware)

	r.HandleFunc("/process", processHandler.Create).Methods(http.MethodPost)
	r.HandleFunc("/process", handleOptions).Methods(http.MethodOptions)
	r.HandleFunc("/process/by-trailer-page", processHandler.CreateByPage).Methods(http.MethodPost)
	r.HandleFunc("/process/by-trailer-page", handleOptions).Methods(http.MethodOptions)
	r.HandleFunc("/process/{processId}", processHandler.Get).Methods(http.MethodGet)
	r.HandleFunc("/process/{processId}", handleOptions).Methods(http.MethodOptions)

	r.HandleFunc("/trailers/feed", processHandler.Feed).Methods(http.MethodGet)
	r.HandleFunc("/trailers/feed", handleOptions).Methods(http.MethodOptions)

	r.HandleFunc("/services", metaHandler.Services).Methods(http.MethodGet)
	r.HandleFunc("/services", handleOptions).Methods(http.MethodOptions)
	r.HandleFunc("/all-status", metaHandler.Statuses).Methods(http.MethodGet)
	r.HandleFunc("/all-status", handleOptions).Methods(http.MethodOptions)
	r.HandleFunc("/health", metaHandler.Health).Methods(http.MethodGet)
	r.HandleFunc("/health", handleOptions).Methods(http.MethodOptions)

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Pprof debug endpoints for profiling (localhost only)
	pprofRouter := r.PathPrefix("/debug/pprof").Subrouter()
	pprofRouter.Use(localhostOnlyMiddleware)
	pprofRouter.HandleFunc("/", pprof.Index)
	pprofRouter.HandleFunc("/cmdline", pprof.Cmdline)
	pprofRouter.HandleFunc("/profile", pprof.Profile)
	pprofRouter.HandleFunc("/symbol", pprof.Symbol)
	pprofRouter.HandleFunc("/trace", pprof.Trace)
	pprofRouter.HandleFunc("/goroutine", pprof.Handler("goroutine").ServeHTTP)
	pprofRouter.HandleFunc("/heap", pprof.Handler("heap").ServeHTTP)
}
