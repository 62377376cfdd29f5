package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/riskdash/internal/api/handlers"
	"github.com/wonny/riskdash/pkg/logger"
	"github.com/wonny/riskdash/pkg/metrics"
)

// NewRouter creates and configures the HTTP router. health and rec may be nil.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	health *handlers.HealthHandler,
	riskHandler *handlers.RiskHandler,
	streamHandler *handlers.StreamHandler,
	rec *metrics.Recorder,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	if health == nil {
		health = handlers.NewHealthHandler()
	}
	r.HandleFunc("/health", health.GetHealth).Methods("GET")

	if rec != nil {
		r.Handle("/metrics", rec.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Risk views
	api.HandleFunc("/risk/latest", riskHandler.GetLatest).Methods("GET")
	api.HandleFunc("/risk/window", riskHandler.GetWindow).Methods("GET")
	api.HandleFunc("/risk/summary", riskHandler.GetSummary).Methods("GET")
	api.HandleFunc("/risk/snapshot", riskHandler.GetSnapshot).Methods("GET")
	api.HandleFunc("/risk/regime", riskHandler.GetRegime).Methods("GET")
	api.HandleFunc("/risk/warning", riskHandler.GetWarning).Methods("GET")
	api.HandleFunc("/risk/stats", riskHandler.GetStats).Methods("GET")
	api.HandleFunc("/risk/quality", riskHandler.GetQuality).Methods("GET")
	api.HandleFunc("/risk/charts/{kind}", riskHandler.GetChart).Methods("GET")

	// Fetch control
	api.HandleFunc("/risk/range", riskHandler.SetRange).Methods("POST")
	api.HandleFunc("/risk/retry", riskHandler.Retry).Methods("POST")

	// Stream
	api.HandleFunc("/stream/status", streamHandler.GetStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(metricsMiddleware(rec))
	r.Use(recoveryMiddleware(log))

	return r
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// metricsMiddleware counts requests per route template
func metricsMiddleware(m *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if cur := mux.CurrentRoute(r); cur != nil {
				if tmpl, err := cur.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			m.RecordHTTP(route, r.Method, strconv.Itoa(rec.status), time.Since(start).Seconds())
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
