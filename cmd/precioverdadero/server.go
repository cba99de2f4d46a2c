package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"precioverdadero/internal/board"
	"precioverdadero/internal/errors"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/middleware"
	"precioverdadero/internal/models"
	"precioverdadero/internal/service"
	"precioverdadero/pkg/commentapi"
	"precioverdadero/pkg/twilio"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	msgBadRequest     = "Formato de solicitud inválido"
	msgPromptReloaded = "Prompt de entrenamiento recargado exitosamente"
	msgPromptFailed   = "No se pudo cargar el prompt de entrenamiento"
)

type commentService interface {
	List(ctx context.Context) ([]models.Comment, error)
	Create(ctx context.Context, in models.CommentInput, idempotencyKey string) (*models.Comment, error)
}

type knowledgeService interface {
	Add(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error)
	List(ctx context.Context) ([]models.KnowledgeEntry, error)
}

type chatAssistant interface {
	Ask(ctx context.Context, message string) (string, error)
	ReloadTraining() (int, error)
}

type supportService interface {
	Send(ctx context.Context, number, message string) (*twilio.Message, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the HTTP layer calls into.
type Dependencies struct {
	Comments  commentService
	Knowledge knowledgeService
	Assistant chatAssistant
	Support   supportService
	Stream    http.Handler
	DB        pinger
	Location  *time.Location
}

type Server struct {
	cfg     models.ServerConfig
	deps    Dependencies
	router  *mux.Router
	logger  *logrus.Logger
	server  *http.Server
	metrics *metrics.Registry
}

func NewServer(cfg models.ServerConfig, deps Dependencies, logger *logrus.Logger) *Server {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: metrics.GetRegistry(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger, s.cfg.TrustProxyHeaders))
	s.router.Use(middleware.CORS(s.cfg.AllowedOrigins))
	if s.cfg.Verbose {
		s.router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(service.WithVerbose(r.Context(), true)))
			})
		})
	}
	if s.cfg.DetailedLogging {
		dl := middleware.DefaultDetailedLoggingConfig()
		dl.TrustProxy = s.cfg.TrustProxyHeaders
		s.router.Use(middleware.DetailedLogging(s.logger, dl))
	}

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handleBoardPage()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(middleware.BodyLimit(s.cfg.MaxBodyBytes))
	api.HandleFunc("/comments", s.handleListComments()).Methods(http.MethodGet)
	api.HandleFunc("/comments", s.handleCreateComment()).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.handleChat()).Methods(http.MethodPost)
	api.HandleFunc("/knowledge", s.handleListKnowledge()).Methods(http.MethodGet)
	api.HandleFunc("/knowledge", s.handleAddKnowledge()).Methods(http.MethodPost)
	api.HandleFunc("/reload-prompt", s.handleReloadPrompt()).Methods(http.MethodPost)
	api.HandleFunc("/support-session", s.handleSupportSession()).Methods(http.MethodPost)
	if s.deps.Stream != nil {
		api.Handle("/stream", s.deps.Stream).Methods(http.MethodGet)
	}
	// Preflight requests are answered by the CORS middleware.
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("Failed to write response")
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, models.APIResponse{Success: false, Message: message})
}

// failureStatus reports input problems with HTTP 200 and success:false,
// everything else with a 5xx.
func failureStatus(err error) int {
	if errors.Is(err, errors.ErrCodeValidationFailed) {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.deps.DB.Ping(ctx); err != nil {
				s.logger.WithError(err).Warn("Health check failed")
				s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
				return
			}
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func (s *Server) handleBoardPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		comments, err := s.deps.Comments.List(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = board.RenderHTMLError(w, board.MsgLoadFailed)
			return
		}
		if err := board.RenderHTML(w, comments, s.deps.Location); err != nil {
			s.logger.WithError(err).Error("Failed to render comment board")
		}
	}
}

func (s *Server) handleListComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		comments, err := s.deps.Comments.List(r.Context())
		if err != nil {
			s.writeFailure(w, http.StatusInternalServerError, errors.GetUserMessage(err))
			return
		}
		if comments == nil {
			comments = []models.Comment{}
		}
		s.writeJSON(w, http.StatusOK, models.CommentsResponse{Success: true, Comments: comments})
	}
}

func (s *Server) handleCreateComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.CommentInput
		if err := decode(r, &in); err != nil {
			s.writeFailure(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		if _, err := s.deps.Comments.Create(r.Context(), in, r.Header.Get(commentapi.IdempotencyHeader)); err != nil {
			s.writeFailure(w, failureStatus(err), errors.GetUserMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: service.MsgCommentSaved})
	}
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ChatRequest
		if err := decode(r, &req); err != nil {
			s.writeFailure(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		answer, err := s.deps.Assistant.Ask(r.Context(), req.Message)
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.IncrementCounter(metrics.ChatRequests, map[string]string{"status": status}, "Assistant questions")
		if err != nil {
			s.writeJSON(w, failureStatus(err), models.ChatResponse{Success: false, Message: errors.GetUserMessage(err)})
			return
		}
		s.writeJSON(w, http.StatusOK, models.ChatResponse{Success: true, Response: answer})
	}
}

func (s *Server) handleListKnowledge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.deps.Knowledge.List(r.Context())
		if err != nil {
			s.writeFailure(w, http.StatusInternalServerError, errors.GetUserMessage(err))
			return
		}
		if entries == nil {
			entries = []models.KnowledgeEntry{}
		}
		s.writeJSON(w, http.StatusOK, models.KnowledgeResponse{Success: true, Knowledge: entries})
	}
}

func (s *Server) handleAddKnowledge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.KnowledgeInput
		if err := decode(r, &in); err != nil {
			s.writeFailure(w, http.StatusBadRequest, msgBadRequest)
			return
		}
		if _, err := s.deps.Knowledge.Add(r.Context(), in.Title, in.Content, in.Category); err != nil {
			s.writeFailure(w, failureStatus(err), errors.GetUserMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, models.APIResponse{Success: true, Message: service.MsgKnowledgeAdded})
	}
}

func (s *Server) handleReloadPrompt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		length, err := s.deps.Assistant.ReloadTraining()
		if err != nil {
			s.logger.WithError(err).Warn("Training prompt reload failed")
			s.writeFailure(w, http.StatusOK, msgPromptFailed)
			return
		}
		s.writeJSON(w, http.StatusOK, models.ReloadResponse{Success: true, Message: msgPromptReloaded, Length: length})
	}
}

func (s *Server) handleSupportSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SupportRequest
		if err := decode(r, &req); err != nil {
			s.writeFailure(w, http.StatusBadRequest, msgBadRequest)
			return
		}

		msg, err := s.deps.Support.Send(r.Context(), req.Number, req.Message)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, errors.ErrCodeValidationFailed) {
				status = http.StatusBadRequest
			}
			s.writeFailure(w, status, errors.GetUserMessage(err))
			return
		}
		s.writeJSON(w, http.StatusOK, models.SupportResponse{
			Success:  true,
			Provider: "twilio",
			Result:   &models.SupportResult{SID: msg.SID, Status: msg.Status},
		})
	}
}
