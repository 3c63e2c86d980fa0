package catalog

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalclinic/clinic/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – every dashboard role
	readGroup := api.Group("", auth.RequireRole(auth.AllRoles...))
	readGroup.GET("/treatments", h.ListEntries(KindTreatment))
	readGroup.GET("/class-years", h.ListEntries(KindClassYear))
	readGroup.GET("/tooth-classes", h.ListToothClasses)
	readGroup.GET("/tooth-classes/:id", h.GetToothClass)
	readGroup.GET("/working-days-groups", h.ListWorkingDaysGroups)

	// Write endpoints – admin
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin))
	writeGroup.POST("/treatments", h.CreateEntry(KindTreatment))
	writeGroup.PUT("/treatments/:id", h.RenameEntry(KindTreatment))
	writeGroup.DELETE("/treatments/:id", h.DeleteEntry(KindTreatment))
	writeGroup.POST("/class-years", h.CreateEntry(KindClassYear))
	writeGroup.PUT("/class-years/:id", h.RenameEntry(KindClassYear))
	writeGroup.DELETE("/class-years/:id", h.DeleteEntry(KindClassYear))
	writeGroup.POST("/tooth-classes", h.CreateToothClass)
	writeGroup.PUT("/tooth-classes/:id", h.UpdateToothClass)
	writeGroup.DELETE("/tooth-classes/:id", h.DeleteToothClass)
	writeGroup.POST("/working-days-groups", h.CreateWorkingDaysGroup)
	writeGroup.PUT("/working-days-groups/:id", h.UpdateWorkingDaysGroup)
	writeGroup.DELETE("/working-days-groups/:id", h.DeleteWorkingDaysGroup)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func writeError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) {
		return storeError(err)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// -- Name-only tables --

func (h *Handler) CreateEntry(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var e Entry
		if err := c.Bind(&e); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if err := h.svc.CreateEntry(c.Request().Context(), kind, &e); err != nil {
			return writeError(err)
		}
		return c.JSON(http.StatusCreated, e)
	}
}

func (h *Handler) ListEntries(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		items, err := h.svc.ListEntries(c.Request().Context(), kind)
		if err != nil {
			return storeError(err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
	}
}

func (h *Handler) RenameEntry(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var e Entry
		if err := c.Bind(&e); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		e.ID = id
		if err := h.svc.RenameEntry(c.Request().Context(), kind, &e); err != nil {
			return writeError(err)
		}
		return c.JSON(http.StatusOK, e)
	}
}

func (h *Handler) DeleteEntry(kind Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		if err := h.svc.DeleteEntry(c.Request().Context(), kind, id); err != nil {
			return storeError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// -- Tooth classes --

func (h *Handler) CreateToothClass(c echo.Context) error {
	var tc ToothClass
	if err := c.Bind(&tc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateToothClass(c.Request().Context(), &tc); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, tc)
}

func (h *Handler) GetToothClass(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	tc, err := h.svc.GetToothClass(c.Request().Context(), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *Handler) ListToothClasses(c echo.Context) error {
	items, err := h.svc.ListToothClasses(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) UpdateToothClass(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var tc ToothClass
	if err := c.Bind(&tc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tc.ID = id
	if err := h.svc.UpdateToothClass(c.Request().Context(), &tc); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, tc)
}

func (h *Handler) DeleteToothClass(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteToothClass(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Working-day groups --

func (h *Handler) CreateWorkingDaysGroup(c echo.Context) error {
	var g WorkingDaysGroup
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateWorkingDaysGroup(c.Request().Context(), &g); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) ListWorkingDaysGroups(c echo.Context) error {
	items, err := h.svc.ListWorkingDaysGroups(c.Request().Context())
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) UpdateWorkingDaysGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var g WorkingDaysGroup
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g.ID = id
	if err := h.svc.UpdateWorkingDaysGroup(c.Request().Context(), &g); err != nil {
		return writeError(err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *Handler) DeleteWorkingDaysGroup(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWorkingDaysGroup(c.Request().Context(), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
