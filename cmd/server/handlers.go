package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/leadpulse/internal/auth"
	"github.com/ZanzyTHEbar/leadpulse/internal/database"
	apperrors "github.com/ZanzyTHEbar/leadpulse/internal/errors"
	"github.com/ZanzyTHEbar/leadpulse/internal/scoring"
	"github.com/ZanzyTHEbar/leadpulse/internal/security"
	"github.com/ZanzyTHEbar/leadpulse/internal/types"
	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	appErr.RequestID = c.GetHeader("X-Request-ID")
	apperrors.LogError(c, appErr)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr)
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, apperrors.NewValidationError("invalid limit", "limit must be a non-negative integer")
	}
	return limit, nil
}

func parseKind(c *gin.Context) (types.Kind, error) {
	kind := types.Kind(c.Param("kind"))
	if !kind.Valid() {
		return "", apperrors.NewValidationError("unknown record kind", "kind must be lead, conversation or queue")
	}
	return kind, nil
}

func (a *app) recordID(c *gin.Context) (string, error) {
	id := c.Param("id")
	if err := a.security.ValidateRecordID(id); err != nil {
		return "", apperrors.NewValidationError("invalid record id", err.Error())
	}
	return id, nil
}

func (a *app) loadRecord(c *gin.Context, id string) (*database.StoredRecord, error) {
	stored, err := a.repo.GetRecord(c.Request.Context(), id)
	if errors.Is(err, database.ErrRecordNotFound) {
		return nil, apperrors.NewNotFoundError("record", id)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load record", err)
	}
	return stored, nil
}

// bindRecord decodes a record body and normalizes it for storage
func (a *app) bindRecord(c *gin.Context) (types.Record, error) {
	var rec types.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		return rec, apperrors.NewValidationError("invalid request body", err.Error())
	}
	if rec.Kind == "" {
		rec.Kind = types.KindLead
	}
	if !rec.Kind.Valid() {
		return rec, apperrors.NewValidationError("unknown record kind", "kind must be lead, conversation or queue")
	}
	rec.LastMessage = security.SanitizeText(rec.LastMessage)
	return rec, nil
}

// handleHealth godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Failure 503 {object} types.HealthResponse
// @Router /health [get]
func (a *app) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status, code := "ok", http.StatusOK
	components := map[string]string{"engine": "ok"}

	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Error("Database health check failed", "error", err)
		components["database"] = "error"
		status, code = "unavailable", http.StatusServiceUnavailable
	} else {
		components["database"] = "ok"
	}

	switch {
	case !a.redis.IsEnabled():
		components["redis"] = "disabled"
	case a.redis.HealthCheck(ctx) != nil:
		components["redis"] = "error"
		if code == http.StatusOK {
			status = "degraded"
		}
	default:
		components["redis"] = "ok"
	}

	c.JSON(code, types.HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		ConfigVersion: a.configVersion(),
		Components:    components,
	})
}

func (a *app) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"requests":       a.metrics.GetStats(),
		"scoring":        a.metrics.GetScoringStats(),
		"queues":         a.queue.GetCacheStats(),
		"response_cache": a.responses.Stats(),
		"compression":    a.compression.GetStats(),
		"rate_limiter":   a.limiter.GetStats(),
		"database":       a.db.GetPoolStats(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// handleScore godoc
// @Summary Score one record
// @Tags scoring
// @Accept json
// @Produce json
// @Param request body types.ScoreRequest true "Record to score"
// @Success 200 {object} scoring.ScoredRecord
// @Failure 400 {object} apperrors.AppError
// @Failure 422 {object} apperrors.AppError
// @Router /v1/score [post]
func (a *app) handleScore(c *gin.Context) {
	var req types.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	start := time.Now()
	res, err := a.queue.Engine().ScoreRecord(req.Record)
	if err != nil {
		respondError(c, err)
		return
	}

	a.metrics.RecordScore(res.NextBestAction.ID, string(res.Risk.Tier))
	a.logger.ScoringLogger(req.Record.ID, res.Composite, string(res.Risk.Tier), res.NextBestAction.ID, time.Since(start), false)

	c.JSON(http.StatusOK, scoring.ScoredRecord{Record: req.Record, Result: res})
}

// handlePrioritize godoc
// @Summary Score, rank and summarize a collection
// @Tags scoring
// @Accept json
// @Produce json
// @Param request body types.PrioritizeRequest true "Records to prioritize"
// @Success 200 {object} scoring.Evaluation
// @Failure 400 {object} apperrors.AppError
// @Router /v1/prioritize [post]
func (a *app) handlePrioritize(c *gin.Context) {
	var req types.PrioritizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if req.Limit < 0 {
		respondError(c, apperrors.NewValidationError("invalid limit", "limit must be a non-negative integer"))
		return
	}

	start := time.Now()
	ev := a.queue.Engine().Evaluate(req.Records)

	a.metrics.RecordRejected(len(ev.Rejected))
	a.metrics.IncrementEvaluation()
	a.logger.BatchLogger("request", len(ev.Records), len(ev.Rejected), len(ev.Insights), ev.ConfigVersion, time.Since(start))

	total := len(ev.Records)
	if req.Limit > 0 && req.Limit < total {
		ev.Records = ev.Records[:req.Limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"records":        ev.Records,
		"rejected":       ev.Rejected,
		"insights":       ev.Insights,
		"total":          total,
		"config_version": ev.ConfigVersion,
	})
}

// handleQueue godoc
// @Summary Prioritized view of stored records
// @Tags queues
// @Produce json
// @Param kind path string true "lead, conversation or queue"
// @Param limit query int false "Maximum records returned"
// @Success 200 {object} queue.View
// @Failure 400 {object} apperrors.AppError
// @Router /v1/queues/{kind} [get]
func (a *app) handleQueue(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := a.queue.View(c.Request.Context(), kind, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *app) handleRefreshQueue(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := a.queue.Evaluate(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":           view.Kind,
		"total":          view.Total,
		"rejected":       len(view.Rejected),
		"insights":       len(view.Insights),
		"config_version": view.ConfigVersion,
		"evaluated_at":   view.EvaluatedAt,
	})
}

// handleRankings returns the ranking persisted by the last evaluation
func (a *app) handleRankings(c *gin.Context) {
	kind, err := parseKind(c)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := parseLimit(c)
	if err != nil {
		respondError(c, err)
		return
	}

	rankings, err := a.repo.ListRankings(c.Request.Context(), kind, limit)
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to load rankings", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kind":     kind,
		"rankings": rankings,
		"count":    len(rankings),
	})
}

func (a *app) handleCreateRecord(c *gin.Context) {
	rec, err := a.bindRecord(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := a.security.ValidateRecordID(rec.ID); err != nil {
		respondError(c, apperrors.NewValidationError("invalid record id", err.Error()))
		return
	}

	stored, err := a.repo.UpsertRecord(c.Request.Context(), rec)
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to store record", err))
		return
	}
	a.queue.RecordChanged(stored.Kind)

	c.JSON(http.StatusCreated, stored)
}

// handleGetRecord godoc
// @Summary Get a stored record
// @Tags records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} database.StoredRecord
// @Failure 404 {object} apperrors.AppError
// @Router /v1/records/{id} [get]
func (a *app) handleGetRecord(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stored, err := a.loadRecord(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (a *app) handleUpdateRecord(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	rec, err := a.bindRecord(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if rec.ID != "" && rec.ID != id {
		respondError(c, apperrors.NewValidationError("record id mismatch", "body id must match the path id"))
		return
	}
	rec.ID = id

	previous, err := a.loadRecord(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	stored, err := a.repo.UpsertRecord(c.Request.Context(), rec)
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to store record", err))
		return
	}
	if previous.Kind != stored.Kind {
		a.queue.RecordChanged(previous.Kind)
	}
	a.queue.RecordChanged(stored.Kind)

	c.JSON(http.StatusOK, stored)
}

// handleArchiveRecord removes a record from its queue but keeps its history
func (a *app) handleArchiveRecord(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := a.loadRecord(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.repo.ArchiveRecord(c.Request.Context(), id); err != nil {
		respondError(c, apperrors.NewInternalError("failed to archive record", err))
		return
	}
	a.queue.RecordChanged(stored.Kind)

	c.Status(http.StatusNoContent)
}

// handleScoreRecord godoc
// @Summary Score a stored record
// @Tags records
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} scoring.ScoredRecord
// @Failure 404 {object} apperrors.AppError
// @Router /v1/records/{id}/score [get]
func (a *app) handleScoreRecord(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	scored, err := a.queue.ScoreRecord(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, scored)
}

func (a *app) handleLatestSnapshot(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := a.repo.LatestSnapshot(c.Request.Context(), id)
	if errors.Is(err, database.ErrSnapshotNotFound) {
		respondError(c, apperrors.NewNotFoundError("snapshot", id))
		return
	}
	if err != nil {
		respondError(c, apperrors.NewInternalError("failed to load snapshot", err))
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleGetConfig godoc
// @Summary Active scoring configuration
// @Tags config
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /v1/config [get]
func (a *app) handleGetConfig(c *gin.Context) {
	e := a.queue.Engine()
	c.JSON(http.StatusOK, gin.H{
		"version": e.Version(),
		"profile": a.cfg.ScoringProfile,
		"config":  e.Config(),
	})
}

// handleReconfigure godoc
// @Summary Replace the scoring configuration
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param profile query string false "Profile name to persist the configuration under"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} apperrors.AppError
// @Failure 401 {object} apperrors.AppError
// @Router /v1/admin/config [post]
func (a *app) handleReconfigure(c *gin.Context) {
	var cfg scoring.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respondError(c, apperrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	profile := c.Query("profile")
	if profile != "" {
		if err := a.security.ValidateRecordID(profile); err != nil {
			respondError(c, apperrors.NewValidationError("invalid profile name", err.Error()))
			return
		}
	}

	previous := a.configVersion()
	next, err := a.queue.Reconfigure(cfg)
	if err != nil {
		respondError(c, err)
		return
	}
	a.responses.Clear()

	a.logger.Info("Scoring configuration replaced",
		"subject", auth.Subject(c),
		"previous_version", previous,
		"version", next.Version(),
	)

	if profile != "" {
		if err := a.profiles.SaveProfile(profile, next.Config()); err != nil {
			respondError(c, apperrors.NewInternalError("configuration applied but not saved", err))
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"previous_version": previous,
		"version":          next.Version(),
		"saved_profile":    profile,
	})
}

// handleForgetRecord erases a record and its score history
func (a *app) handleForgetRecord(c *gin.Context) {
	id, err := a.recordID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	stored, err := a.loadRecord(c, id)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := a.privacy.ForgetRecord(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			respondError(c, apperrors.NewNotFoundError("record", id))
			return
		}
		respondError(c, apperrors.NewInternalError("failed to erase record", err))
		return
	}
	a.queue.RecordChanged(stored.Kind)

	c.Status(http.StatusNoContent)
}

func (a *app) handleCleanup(c *gin.Context) {
	report, err := a.privacy.Cleanup(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.NewInternalError("data cleanup failed", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

func (a *app) handleRetention(c *gin.Context) {
	c.JSON(http.StatusOK, a.privacy.RetentionInfo())
}
