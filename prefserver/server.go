// Package prefserver is the preference API the recommender polls. It stores
// the latest keyword answers from the questionnaire and the latest
// recommendations posted back, both in memory.
package prefserver

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"cine-match/llm"
	"cine-match/logging"
	"cine-match/metrics"
	"cine-match/preferences"
)

const maxBodyBytes = 1 << 20

// KeywordExtractor turns raw answers into keyword answers. *llm.Extractor
// satisfies it.
type KeywordExtractor interface {
	Extract(ctx context.Context, responses []llm.Response) ([]preferences.Answer, string, error)
}

type Server struct {
	extractor KeywordExtractor
	validate  *validator.Validate

	mu       sync.RWMutex
	keywords []preferences.Answer
	data     json.RawMessage
}

func New(extractor KeywordExtractor) *Server {
	return &Server{
		extractor: extractor,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		data:      json.RawMessage("[]"),
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler())
	r.Use(observe)

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", s.handleTest)
		r.Post("/save-responses", s.handleSaveResponses)
		r.Get("/get-responses", s.handleGetResponses)
		r.Delete("/get-responses", s.handleClearResponses)
		r.Post("/data", s.handlePostData)
		r.Get("/data", s.handleGetData)
	})
	r.Handle("/metrics", metrics.Handler())
	return r
}

// HTTPServer wraps Routes with the timeouts used by the prefserver binary.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

// corsHandler allows any origin, as the questionnaire front end is served
// elsewhere.
func corsHandler() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})
}

// observe counts requests by route pattern and logs them at debug level.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		logging.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}
