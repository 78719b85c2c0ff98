package http

import (
	"database/sql"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"mirror_sync/core/service/mirror"
	"mirror_sync/pkg/logger"
	"mirror_sync/pkg/response"
)

// =============================================================================
// AdminHandler - mutation API + sync operations
// =============================================================================
//
// One generic CRUD surface over every mirrored entity type. The entity type is
// a path parameter resolved through the registry, so adding a type to the
// registry is all it takes to expose it here.

type AdminHandler struct {
	registry  *mirror.Registry
	scheduler *mirror.Scheduler
	sweeper   *mirror.Sweeper
	stats     *mirror.StatsService
	log       *logger.Logger
}

func NewAdminHandler(registry *mirror.Registry, scheduler *mirror.Scheduler, sweeper *mirror.Sweeper, stats *mirror.StatsService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{
		registry:  registry,
		scheduler: scheduler,
		sweeper:   sweeper,
		stats:     stats,
		log:       log,
	}
}

// Register registers admin routes. The static /sync routes must come before
// the /:entityType wildcard.
func (h *AdminHandler) Register(app fiber.Router) {
	api := app.Group("/api")

	syncGroup := api.Group("/sync")
	syncGroup.Get("/stats", h.SyncStats)
	syncGroup.Post("/force", h.ForceSync)
	syncGroup.Post("/resync", h.Resync)

	entities := api.Group("/:entityType")
	entities.Post("/", h.Create)
	entities.Get("/", h.List)
	entities.Get("/:id", h.Get)
	entities.Put("/:id", h.Update)
	entities.Delete("/:id", h.Delete)
}

// =============================================================================
// Sync operations
// =============================================================================

// SyncStats returns per-type sync counters.
func (h *AdminHandler) SyncStats(c *fiber.Ctx) error {
	stats, err := h.stats.Collect(c.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to collect sync stats")
		return response.InternalError(c, "failed to collect sync stats")
	}
	return response.OK(c, stats)
}

// ForceSyncRequest narrows a forced sweep.
type ForceSyncRequest struct {
	EntityType  string `json:"entity_type"`
	IncludeDead bool   `json:"include_dead"`
}

// ForceSync runs one bounded sweep immediately and reports the result.
func (h *AdminHandler) ForceSync(c *fiber.Ctx) error {
	var req ForceSyncRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "invalid request body")
		}
	}

	result, err := h.sweeper.Run(c.Context(), mirror.SweepOptions{
		EntityType:  req.EntityType,
		IncludeDead: req.IncludeDead,
	})
	if err != nil {
		if result == nil {
			return response.BadRequest(c, err.Error())
		}
		h.log.WithError(err).Error("forced sweep aborted")
		return response.InternalError(c, "sweep aborted: "+err.Error())
	}
	return response.OK(c, result)
}

// Resync flags every row of every type for re-sync. The actual pushes happen
// through the periodic sweep and retry machinery.
func (h *AdminHandler) Resync(c *fiber.Ctx) error {
	n, err := h.stats.MarkAllUnsynced(c.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to mark rows unsynced")
		return response.InternalError(c, "failed to mark rows unsynced")
	}
	h.scheduler.InvalidateBacklog(c.Context())

	h.log.WithField("rows", n).Info("full resync requested")
	return response.OK(c, fiber.Map{"marked_unsynced": n})
}

// =============================================================================
// Generic entity CRUD
// =============================================================================

func (h *AdminHandler) entry(c *fiber.Ctx) (*mirror.Entry, string, error) {
	entityType := c.Params("entityType")
	entry, err := h.registry.Get(entityType)
	if err != nil {
		return nil, entityType, response.NotFound(c, "unknown entity type: "+entityType)
	}
	return entry, entityType, nil
}

func parseID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// Create inserts a row and schedules its first push.
func (h *AdminHandler) Create(c *fiber.Ctx) error {
	entry, entityType, err := h.entry(c)
	if err != nil {
		return err
	}

	e := entry.New()
	if err := c.BodyParser(e); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	id, err := entry.Repo.Insert(c.Context(), e)
	if err != nil {
		h.log.WithEntity(entityType, "").WithError(err).Error("insert failed")
		return response.InternalError(c, "failed to create "+entityType)
	}

	outcome := h.scheduler.ScheduleSync(c.Context(), entityType, id, "create")

	created, err := entry.Repo.GetByID(c.Context(), id)
	if err != nil || created == nil {
		// Row exists; reload is best-effort for the response body.
		return response.Created(c, fiber.Map{"id": id}, &response.Meta{SyncOutcome: outcome})
	}
	return response.Created(c, created, &response.Meta{SyncOutcome: outcome})
}

// List returns a page of rows.
func (h *AdminHandler) List(c *fiber.Ctx) error {
	entry, entityType, err := h.entry(c)
	if err != nil {
		return err
	}

	page := response.GetPagination(c, 20, 100)
	rows, err := entry.Repo.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		h.log.WithEntity(entityType, "").WithError(err).Error("list failed")
		return response.InternalError(c, "failed to list "+entityType)
	}

	return response.OKWithMeta(c, rows, &response.Meta{Limit: page.Limit, Offset: page.Offset})
}

// Get returns one row by id.
func (h *AdminHandler) Get(c *fiber.Ctx) error {
	entry, entityType, err := h.entry(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid id")
	}

	e, err := entry.Repo.GetByID(c.Context(), id)
	if err != nil {
		h.log.WithEntity(entityType, c.Params("id")).WithError(err).Error("get failed")
		return response.InternalError(c, "failed to get "+entityType)
	}
	if e == nil {
		return response.NotFound(c, entityType+" not found")
	}
	return response.OK(c, e)
}

// Update applies a partial update and schedules a push. The body is parsed
// into the current row, so omitted fields keep their stored values.
func (h *AdminHandler) Update(c *fiber.Ctx) error {
	entry, entityType, err := h.entry(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid id")
	}

	e, err := entry.Repo.GetByID(c.Context(), id)
	if err != nil {
		h.log.WithEntity(entityType, c.Params("id")).WithError(err).Error("get failed")
		return response.InternalError(c, "failed to get "+entityType)
	}
	if e == nil {
		return response.NotFound(c, entityType+" not found")
	}

	if err := c.BodyParser(e); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := entry.Repo.Update(c.Context(), e); err != nil {
		h.log.WithEntity(entityType, c.Params("id")).WithError(err).Error("update failed")
		return response.InternalError(c, "failed to update "+entityType)
	}

	outcome := h.scheduler.ScheduleSync(c.Context(), entityType, id, "update")
	return response.OKWithMeta(c, e, &response.Meta{SyncOutcome: outcome})
}

// Delete removes a row and its replica document. The replica delete rides on
// the tombstone written in the same transaction as the row delete.
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	entry, entityType, err := h.entry(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid id")
	}

	ts, err := entry.Repo.DeleteWithTombstone(c.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.NotFound(c, entityType+" not found")
		}
		h.log.WithEntity(entityType, c.Params("id")).WithError(err).Error("delete failed")
		return response.InternalError(c, "failed to delete "+entityType)
	}

	h.scheduler.ScheduleDelete(c.Context(), entityType, ts.ID)
	return response.OKWithMeta(c, fiber.Map{"id": id}, &response.Meta{SyncOutcome: mirror.OutcomeQueued})
}
