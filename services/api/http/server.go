package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/api/config"
	"github.com/aishadeltio13/DataProject1/services/api/db"
)

// Store is the storage surface the gateway needs. *db.Store implements it;
// tests substitute an in-memory version.
type Store interface {
	LookupUser(ctx context.Context, apiKey string) (string, error)
	CreateUser(ctx context.Context, username string) (string, error)
	InsertMeasurement(ctx context.Context, rec measurement.Record) error
	LatestByStation(ctx context.Context) ([]db.LatestRow, error)
	Averages(ctx context.Context, hours int) ([]db.ParameterStats, error)
	TopStations(ctx context.Context, parameter string, hours, limit int) ([]db.StationAverage, error)
	Stations(ctx context.Context) ([]db.StationInfo, error)
}

// Server bundles router and dependencies for the ingestion gateway.
type Server struct {
	cfg    config.Config
	store  Store
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	server := &Server{cfg: cfg, store: store, engine: engine}
	server.registerV1Routes()

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// apiKeyMiddleware authenticates writers via the X-API-Key header against
// stored credentials. Unknown or missing keys abort before any processing.
func (s *Server) apiKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		username, err := s.store.LookupUser(ctx, key)
		if errors.Is(err, db.ErrUnknownKey) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Set("username", username)
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
