// internal/api/handlers.go
// Package api is the thin HTTP/JSON collaborator in front of the engine.
// Every handler maps 1:1 onto an engine operation; auth and tenant scoping
// are handled upstream and deliberately absent here.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
	"menusync/internal/engine"
	"menusync/internal/models"
	"menusync/internal/store"
)

// Response is the uniform envelope for every endpoint.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Server struct {
	engine *engine.Service
	logger logger.Logger
}

func NewServer(eng *engine.Service, log logger.Logger) *Server {
	return &Server{engine: eng, logger: log}
}

// Register mounts all engine routes on the echo instance.
func (s *Server) Register(e *echo.Echo) {
	g := e.Group("/api")

	g.POST("/sync/initialize", s.initialize)
	g.GET("/sync/status", s.status)
	g.GET("/sync/:branchSyncId/pending", s.pending)
	g.POST("/sync/:branchSyncId/sync", s.sync)
	g.PUT("/sync/:branchSyncId/mode", s.setMode)
	g.POST("/sync/:branchSyncId/overrides/:itemId", s.setOverride)
	g.DELETE("/sync/:branchSyncId/overrides/:itemId", s.removeOverride)
	g.GET("/sync/:branchSyncId/overrides", s.listOverrides)
	g.GET("/sync/:branchSyncId/history", s.history)

	g.POST("/menus/:masterMenuId/versions", s.createVersion)
	g.GET("/menus/:masterMenuId/versions", s.listVersions)
	g.GET("/menus/:masterMenuId/versions/:version/snapshot", s.snapshot)
	g.GET("/menus/:masterMenuId/compare/:from/:to", s.compare)
	g.POST("/menus/:masterMenuId/bulk-sync", s.bulkSync)

	g.GET("/franchises/:franchiseId/dashboard", s.dashboard)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// fail maps the engine error taxonomy onto HTTP status codes.
func (s *Server) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch engerrors.CodeOf(err) {
	case engerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case engerrors.ErrCodeValidation, engerrors.ErrCodeInvalidTarget:
		status = http.StatusBadRequest
	case engerrors.ErrCodeAlreadyLinked, engerrors.ErrCodeSyncInProgress:
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"path":  c.Path(),
			"error": err.Error(),
		})
	}
	msg := err.Error()
	var ee *engerrors.EngineError
	if errors.As(err, &ee) {
		msg = ee.Message
		if ee.Details != "" {
			msg += ": " + ee.Details
		}
	}
	return c.JSON(status, Response{Success: false, Message: msg})
}

// --- sync link lifecycle ---

type initializeRequest struct {
	LocationID   string `json:"location_id"`
	MenuID       string `json:"menu_id"`
	MasterMenuID string `json:"master_menu_id"`
	SyncMode     string `json:"sync_mode"`
}

func (s *Server) initialize(c echo.Context) error {
	var req initializeRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, engerrors.NewValidationError("malformed request body"))
	}
	if req.LocationID == "" || req.MenuID == "" || req.MasterMenuID == "" {
		return s.fail(c, engerrors.NewValidationError("location_id, menu_id and master_menu_id are required"))
	}
	link, err := s.engine.Initialize(c.Request().Context(), req.LocationID, req.MenuID, req.MasterMenuID, models.SyncMode(req.SyncMode))
	if err != nil {
		return s.fail(c, err)
	}
	return created(c, link)
}

func (s *Server) status(c echo.Context) error {
	locationID := c.QueryParam("location_id")
	masterMenuID := c.QueryParam("master_menu_id")
	if locationID == "" || masterMenuID == "" {
		return s.fail(c, engerrors.NewValidationError("location_id and master_menu_id are required"))
	}
	link, err := s.engine.Status(c.Request().Context(), locationID, masterMenuID)
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, link)
}

func (s *Server) pending(c echo.Context) error {
	p, err := s.engine.Pending(c.Request().Context(), c.Param("branchSyncId"))
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, p)
}

// --- sync execution ---

type syncRequest struct {
	TargetVersion *int `json:"target_version"`
}

func (s *Server) sync(c echo.Context) error {
	var req syncRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, engerrors.NewValidationError("malformed request body"))
	}
	res, err := s.engine.Sync(c.Request().Context(), c.Param("branchSyncId"), req.TargetVersion, "manual")
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, res)
}

func (s *Server) bulkSync(c echo.Context) error {
	res, err := s.engine.BulkSync(c.Request().Context(), c.Param("masterMenuId"), "bulk")
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, res)
}

type modeRequest struct {
	SyncMode string `json:"sync_mode"`
}

func (s *Server) setMode(c echo.Context) error {
	var req modeRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, engerrors.NewValidationError("malformed request body"))
	}
	if err := s.engine.SetMode(c.Request().Context(), c.Param("branchSyncId"), models.SyncMode(req.SyncMode)); err != nil {
		return s.fail(c, err)
	}
	return ok(c, map[string]string{"sync_mode": req.SyncMode})
}

// --- overrides ---

type overrideRequest struct {
	PriceOverride        *float64 `json:"price_override"`
	AvailabilityOverride *bool    `json:"availability_override"`
	PriceLocked          bool     `json:"price_locked"`
	AvailabilityLocked   bool     `json:"availability_locked"`
	FullyLocked          bool     `json:"fully_locked"`
	OverrideReason       string   `json:"override_reason"`
}

func (s *Server) setOverride(c echo.Context) error {
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, engerrors.NewValidationError("malformed request body"))
	}
	o, err := s.engine.SetOverride(c.Request().Context(), c.Param("branchSyncId"), c.Param("itemId"), store.OverrideParams{
		PriceOverride:        req.PriceOverride,
		AvailabilityOverride: req.AvailabilityOverride,
		PriceLocked:          req.PriceLocked,
		AvailabilityLocked:   req.AvailabilityLocked,
		FullyLocked:          req.FullyLocked,
		OverrideReason:       req.OverrideReason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, o)
}

func (s *Server) removeOverride(c echo.Context) error {
	if err := s.engine.RemoveOverride(c.Request().Context(), c.Param("branchSyncId"), c.Param("itemId")); err != nil {
		return s.fail(c, err)
	}
	return ok(c, nil)
}

func (s *Server) listOverrides(c echo.Context) error {
	list, err := s.engine.ListOverrides(c.Request().Context(), c.Param("branchSyncId"))
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, list)
}

// --- audit & versions ---

func (s *Server) history(c echo.Context) error {
	limit, offset := pagination(c)
	list, err := s.engine.History(c.Request().Context(), c.Param("branchSyncId"), limit, offset)
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, list)
}

type createVersionRequest struct {
	ChangeType    string          `json:"change_type"`
	ChangeSummary string          `json:"change_summary"`
	Snapshot      models.Snapshot `json:"snapshot"`
}

func (s *Server) createVersion(c echo.Context) error {
	var req createVersionRequest
	if err := c.Bind(&req); err != nil {
		return s.fail(c, engerrors.NewValidationError("malformed request body"))
	}
	v, err := s.engine.CreateVersion(c.Request().Context(), c.Param("masterMenuId"),
		models.ChangeType(req.ChangeType), req.ChangeSummary, req.Snapshot)
	if err != nil {
		return s.fail(c, err)
	}
	return created(c, v)
}

func (s *Server) listVersions(c echo.Context) error {
	limit, offset := pagination(c)
	list, err := s.engine.ListVersions(c.Request().Context(), c.Param("masterMenuId"), limit, offset)
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, list)
}

func (s *Server) snapshot(c echo.Context) error {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		return s.fail(c, engerrors.NewValidationError("version must be an integer"))
	}
	snap, err := s.engine.GetSnapshot(c.Request().Context(), c.Param("masterMenuId"), version)
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, snap)
}

func (s *Server) compare(c echo.Context) error {
	from, err := strconv.Atoi(c.Param("from"))
	if err != nil {
		return s.fail(c, engerrors.NewValidationError("from must be an integer"))
	}
	to, err := strconv.Atoi(c.Param("to"))
	if err != nil {
		return s.fail(c, engerrors.NewValidationError("to must be an integer"))
	}
	d, err := s.engine.Compare(c.Request().Context(), c.Param("masterMenuId"), from, to)
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, d)
}

func (s *Server) dashboard(c echo.Context) error {
	report, err := s.engine.Dashboard(c.Request().Context(), c.Param("franchiseId"))
	if err != nil {
		return s.fail(c, err)
	}
	return ok(c, report)
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}
