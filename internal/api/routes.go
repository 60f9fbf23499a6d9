package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"fault-triage/backend/internal/artifact"
	"fault-triage/backend/internal/metrics"
	"fault-triage/backend/internal/predict"
	"fault-triage/backend/internal/store"
	"fault-triage/backend/internal/util"
)

// Artifact backends accepted by Config.ArtifactBackend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultMaxDescriptionLength bounds description size in runes when Config leaves it unset.
const DefaultMaxDescriptionLength = 5000

// Config defines server dependencies.
type Config struct {
	DBPath               string
	SilentDB             bool
	ArtifactBackend      string
	ArtifactDir          string
	CategoryArtifact     string
	PriorityArtifact     string
	AllowedOrigins       []string
	MaxDescriptionLength int
	MetricsNamespace     string
	// Predictor replaces the artifact-backed prediction service when set.
	Predictor *predict.Service
}

// Server wires HTTP handlers with persistence and prediction.
type Server struct {
	db             *store.Database
	predictor      *predict.Service
	notifier       *FaultNotifier
	metrics        *metrics.Collector
	allowedOrigins []string
	maxDescription int
}

// NewServer constructs the API server. Model artifacts are loaded before it returns.
func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("db path required")
	}
	db, err := store.Open(cfg.DBPath, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	namespace := cfg.MetricsNamespace
	if namespace == "" {
		namespace = "fault_triage"
	}
	collector := metrics.NewCollector(namespace)

	predictor := cfg.Predictor
	if predictor == nil {
		artifacts, err := artifactStore(cfg, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		predictor = predict.New(artifacts, cfg.CategoryArtifact, cfg.PriorityArtifact)
	}
	status := predictor.Status()
	collector.SetModelLoaded(status.Category.Target, status.Category.Loaded)
	collector.SetModelLoaded(status.Priority.Target, status.Priority.Loaded)

	maxDescription := cfg.MaxDescriptionLength
	if maxDescription <= 0 {
		maxDescription = DefaultMaxDescriptionLength
	}

	return &Server{
		db:             db,
		predictor:      predictor,
		notifier:       NewFaultNotifier(func(n int) { collector.StreamClients.Set(float64(n)) }),
		metrics:        collector,
		allowedOrigins: cfg.AllowedOrigins,
		maxDescription: maxDescription,
	}, nil
}

func artifactStore(cfg Config, db *store.Database) (artifact.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ArtifactBackend)) {
	case "", BackendFile:
		return artifact.NewFileStore(cfg.ArtifactDir), nil
	case BackendSQLite:
		return artifact.NewDBStore(db), nil
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.ArtifactBackend)
	}
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Predictor exposes the prediction service.
func (s *Server) Predictor() *predict.Service {
	return s.predictor
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.Default()
	r.Use(s.metrics.Middleware())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.POST("/predict", s.handlePredict)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/model", s.handleModel)
		api.POST("/predict", s.handlePredict)

		api.POST("/faults", s.handleCreateFault)
		api.GET("/faults", s.handleListFaults)
		api.GET("/faults/stats", s.handleFaultStats)
		api.GET("/faults/stream", s.handleFaultStream)
		api.GET("/faults/:id", s.handleGetFault)
		api.PUT("/faults/:id/status", s.handleUpdateStatus)
		api.PUT("/faults/:id/assign", s.handleAssignFault)
		api.GET("/faults/:id/comments", s.handleListComments)
		api.POST("/faults/:id/comments", s.handleAddComment)

		api.POST("/employees", s.handleCreateEmployee)
		api.GET("/employees", s.handleListEmployees)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_state": s.predictor.State()})
}

func (s *Server) handleModel(c *gin.Context) {
	c.JSON(http.StatusOK, s.predictor.Status())
}

func (s *Server) handlePredict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Description == nil {
		s.renderError(c, http.StatusBadRequest, errors.New("description is required"))
		return
	}
	description, err := s.validateDescription(*req.Description)
	if err != nil {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	c.JSON(http.StatusOK, s.classify(description))
}

func (s *Server) validateDescription(raw string) (string, error) {
	description := strings.TrimSpace(raw)
	if description == "" {
		return "", errors.New("description must not be empty")
	}
	if n := utf8.RuneCountInString(description); n > s.maxDescription {
		return "", fmt.Errorf("description is %d characters, limit is %d", n, s.maxDescription)
	}
	return description, nil
}

func (s *Server) classify(description string) predict.Result {
	timer := util.StartTimer()
	result := s.predictor.Predict(description)
	s.metrics.RecordPrediction(result.Fallback(), timer.ElapsedSeconds())
	if result.Fallback() {
		logrus.WithField("error", result.Error).Debug("served fallback triage labels")
	}
	return result
}

func (s *Server) handleFaultStream(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}

	client := s.notifier.Register(conn)
	logrus.WithField("remote", conn.RemoteAddr().String()).Info("fault stream connected")
	defer s.notifier.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("remote", conn.RemoteAddr().String()).Info("fault stream closed")
			} else {
				logrus.WithError(err).Warn("fault stream unexpected close")
			}
			break
		}
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}
