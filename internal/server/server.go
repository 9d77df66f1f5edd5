// Package server implements the HTTP facade of the elevenlabs-service: a
// small set of request/response-typed endpoints that validate input shape,
// delegate to the provider adapter, and map failures to HTTP status codes.
package server

import (
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/gorilla/mux"

	"github.com/book-expert/elevenlabs-service/internal/core"
	"github.com/book-expert/elevenlabs-service/internal/worker"
)

// ServiceName and ServiceVersion identify the service in health and banner
// responses.
const (
	ServiceName    = "elevenlabs-service"
	ServiceVersion = "1.0.0"
)

// Route paths.
const (
	routeRoot    = "/"
	routeHealth  = "/health"
	routeTTS     = "/tts"
	routeSTT     = "/stt"
	routeSTTFile = "/stt-file"
	routeVoices  = "/voices"
	routeModels  = "/models"
	routeUser    = "/user"
)

// Options collects the dependencies and behavior switches for a Server. All
// state is injected here; handlers hold no package-level references.
type Options struct {
	Provider        core.Provider
	Pool            *worker.Pool
	Archive         core.AudioArchive
	Log             *logger.Logger
	DefaultVoiceID  string
	DefaultTTSModel string
	DefaultSTTModel string
	AllowDegraded   bool
}

// Server holds the request handlers and their shared dependencies.
type Server struct {
	provider        core.Provider
	pool            *worker.Pool
	archive         core.AudioArchive
	log             *logger.Logger
	defaultVoiceID  string
	defaultTTSModel string
	defaultSTTModel string
	allowDegraded   bool
	startedAt       time.Time
}

// New creates a Server from the given options.
func New(opts Options) *Server {
	return &Server{
		provider:        opts.Provider,
		pool:            opts.Pool,
		archive:         opts.Archive,
		log:             opts.Log,
		defaultVoiceID:  opts.DefaultVoiceID,
		defaultTTSModel: opts.DefaultTTSModel,
		defaultSTTModel: opts.DefaultSTTModel,
		allowDegraded:   opts.AllowDegraded,
		startedAt:       time.Now(),
	}
}

// Router builds the HTTP routing table with the request ID, access logging,
// and panic recovery middleware applied to every route.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.withRequestID, s.withAccessLog, s.withRecovery)

	router.HandleFunc(routeRoot, s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc(routeHealth, s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc(routeTTS, s.handleTTS).Methods(http.MethodPost)
	router.HandleFunc(routeSTT, s.handleSTT).Methods(http.MethodPost)
	router.HandleFunc(routeSTTFile, s.handleSTTFile).Methods(http.MethodPost)
	router.HandleFunc(routeVoices, s.handleVoices).Methods(http.MethodGet)
	router.HandleFunc(routeModels, s.handleModels).Methods(http.MethodGet)
	router.HandleFunc(routeUser, s.handleUser).Methods(http.MethodGet)

	return router
}
