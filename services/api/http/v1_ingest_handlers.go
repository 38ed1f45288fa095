package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aishadeltio13/DataProject1/measurement"
	"github.com/aishadeltio13/DataProject1/services/api/db"
)

// handleV1Ingest accepts one canonical measurement per call. The caller is
// already authenticated by the route middleware; here the record is
// validated against the domain invariants and offered to the store, which
// rejects duplicates via its uniqueness constraint.
func (s *Server) handleV1Ingest(c *gin.Context) {
	var rec measurement.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body: " + err.Error()})
		return
	}

	if ferr := rec.Validate(measurement.London); ferr != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "invalid field",
			"field":  ferr.Field,
			"reason": ferr.Reason,
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	err := s.store.InsertMeasurement(ctx, rec)
	switch {
	case errors.Is(err, db.ErrDuplicate):
		// Expected on replays; the record already exists and is kept as-is.
		c.JSON(http.StatusConflict, gin.H{"status": "duplicate"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, gin.H{"status": "accepted", "user": c.GetString("username")})
	}
}

type registerRequest struct {
	Username string `json:"username"`
}

// handleV1Register creates a principal and returns its opaque api key.
// Principals are create-only; re-registering is refused.
func (s *Server) handleV1Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	key, err := s.store.CreateUser(ctx, req.Username)
	switch {
	case errors.Is(err, db.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, gin.H{"username": req.Username, "api_key": key})
	}
}
