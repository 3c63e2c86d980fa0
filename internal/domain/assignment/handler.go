package assignment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalclinic/clinic/internal/domain/patient"
	"github.com/dentalclinic/clinic/internal/platform/auth"
	"github.com/dentalclinic/clinic/internal/platform/validation"
)

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Engine writes – every dashboard role
	writeGroup := api.Group("", auth.RequireRole(auth.AllRoles...))
	writeGroup.POST("/patients", h.CreatePatient)
	writeGroup.POST("/patients/bulk", h.BulkCreatePatients)
	writeGroup.PUT("/patients/:id", h.UpdatePatient)
	writeGroup.POST("/patients/:id/status", h.ChangeStatus)
	writeGroup.POST("/patients/:id/assign", h.ReassignStudent)
	writeGroup.DELETE("/patients/:id", h.DeletePatient)
	writeGroup.POST("/students/:id/recompute", h.RecomputeStudent)

	// Maintenance – admin, supervisor
	maintGroup := api.Group("", auth.RequireRole(auth.RoleSupervisor))
	maintGroup.POST("/students/recompute", h.RecomputeAll)
	maintGroup.POST("/students/registrations/sweep", h.Sweep)
}

type partialBody struct {
	Message   string     `json:"message"`
	Operation string     `json:"operation"`
	PatientID uuid.UUID  `json:"patient_id"`
	StudentID *uuid.UUID `json:"student_id,omitempty"`
	Step      string     `json:"step"`
	Recovery  string     `json:"recovery,omitempty"`
}

// httpError maps engine errors onto HTTP statuses. Partial failures name the
// student to reconcile and the endpoint that does it.
func httpError(err error) error {
	var fe *validation.FieldError
	var pf *PartialFailureError
	switch {
	case errors.As(err, &pf):
		body := partialBody{
			Message:   pf.Error(),
			Operation: pf.Operation,
			PatientID: pf.PatientID,
			StudentID: pf.StudentID,
			Step:      pf.Step,
		}
		if pf.StudentID != nil {
			body.Recovery = "POST /api/v1/students/" + pf.StudentID.String() + "/recompute"
		}
		return echo.NewHTTPError(http.StatusInternalServerError, body)
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fe)
	case errors.Is(err, ErrPatientNotFound), errors.Is(err, ErrStudentNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateTicket), errors.Is(err, ErrConflict), errors.Is(err, ErrStudentBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var d Draft
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.engine.CreatePatient(c.Request().Context(), &d)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) BulkCreatePatients(c echo.Context) error {
	var drafts []*Draft
	if err := c.Bind(&drafts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(drafts) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no patients given")
	}
	results := h.engine.BulkCreatePatients(c.Request().Context(), drafts)
	created, partial := 0, 0
	for _, r := range results {
		switch {
		case r.Error == "":
			created++
		case r.Partial:
			partial++
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"created": created,
		"partial": partial,
		"failed":  len(results) - created - partial,
		"results": results,
	})
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var edit Edit
	if err := c.Bind(&edit); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.engine.UpdatePatient(c.Request().Context(), id, &edit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status patient.Status `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.engine.ChangeStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

type assignRequest struct {
	StudentID *uuid.UUID `json:"student_id"`
}

func (h *Handler) ReassignStudent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.engine.ReassignStudent(c.Request().Context(), id, req.StudentID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.engine.DeletePatient(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RecomputeStudent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	counters, err := h.engine.RecomputeStudentCounters(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, counters)
}

func (h *Handler) RecomputeAll(c echo.Context) error {
	done, err := h.engine.RecomputeAllCounters(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, map[string]interface{}{
			"recomputed": done,
			"message":    err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]int{"recomputed": done})
}

func (h *Handler) Sweep(c echo.Context) error {
	ids, err := h.engine.SweepExpiredRegistrations(c.Request().Context(), time.Now())
	if err != nil {
		return httpError(err)
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"expired": len(ids), "student_ids": ids})
}
