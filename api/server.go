// Package api exposes the classifier and recommender over HTTP
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/RyanBlaney/sonido-vibe/classifier"
	"github.com/RyanBlaney/sonido-vibe/logging"
	"github.com/RyanBlaney/sonido-vibe/publish"
	"github.com/RyanBlaney/sonido-vibe/recommend"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// DefaultOrigins are the development front ends allowed by CORS
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Server holds the collaborators behind the HTTP handlers
type Server struct {
	classifier  *classifier.Classifier
	recommender *recommend.Recommender
	publisher   publish.Publisher
	logger      logging.Logger

	publishTimeout time.Duration
}

// NewServer creates a server. A nil publisher publishes nothing.
func NewServer(c *classifier.Classifier, r *recommend.Recommender, p publish.Publisher) *Server {
	if p == nil {
		p = publish.Noop{}
	}
	return &Server{
		classifier:  c,
		recommender: r,
		publisher:   p,
		logger: logging.WithFields(logging.Fields{
			"component": "api",
		}),
		publishTimeout: DefaultPublishTimeout,
	}
}

// WithPublishTimeout changes how long a request waits on event publication
func (s *Server) WithPublishTimeout(d time.Duration) *Server {
	if d > 0 {
		s.publishTimeout = d
	}
	return s
}

// Router registers every route
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.rootHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/analyze", s.analyzeHandler).Methods(http.MethodPost)
	api.HandleFunc("/recommend", s.recommendHandler).Methods(http.MethodPost)
	api.HandleFunc("/analyze-emotion", s.analyzeEmotionHandler).Methods(http.MethodPost)
	api.HandleFunc("/emotions", s.emotionsHandler).Methods(http.MethodGet)

	return r
}

// Handler wraps the router with CORS, panic recovery and an access log.
// Empty origins selects DefaultOrigins. A nil accessLog disables access
// logging.
func (s *Server) Handler(origins []string, accessLog io.Writer) http.Handler {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	var h http.Handler = s.Router()
	h = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		handlers.AllowCredentials(),
	)(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
	if accessLog != nil {
		h = handlers.LoggingHandler(accessLog, h)
	}
	return h
}

// recoveryLogger adapts logging.Logger to handlers.RecoveryHandlerLogger
type recoveryLogger struct {
	logger logging.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error(fmt.Errorf("%s", fmt.Sprint(v...)), "Recovered from panic in handler")
}
