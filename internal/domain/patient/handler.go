package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/dentalclinic/clinic/internal/platform/auth"
	"github.com/dentalclinic/clinic/internal/platform/validation"
	"github.com/dentalclinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts patient reads, line items and notes. Creation,
// edits, status changes and deletion are served by the assignment handler.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.AllRoles...))
	readGroup.GET("/patients", h.List)
	readGroup.GET("/patients/:id", h.Get)
	readGroup.GET("/patients/:id/tooth-treatments", h.ListToothTreatments)
	readGroup.GET("/patients/:id/notes", h.ListNotes)

	writeGroup := api.Group("", auth.RequireRole(auth.AllRoles...))
	writeGroup.POST("/patients/:id/tooth-treatments", h.AddToothTreatment)
	writeGroup.PUT("/patients/:id/tooth-treatments/:itemId", h.UpdateToothTreatment)
	writeGroup.DELETE("/patients/:id/tooth-treatments/:itemId", h.RemoveToothTreatment)
	writeGroup.POST("/patients/:id/tooth-treatments/:itemId/primary", h.SetPrimaryToothTreatment)
	writeGroup.POST("/patients/:id/notes", h.AddNote)
	writeGroup.PUT("/patients/:id/notes/:noteId", h.UpdateNote)
	writeGroup.DELETE("/patients/:id/notes/:noteId", h.DeleteNote)
}

func httpError(err error) error {
	var fe *validation.FieldError
	switch {
	case errors.As(err, &fe):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, fe)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrLineItemNotFound), errors.Is(err, ErrNoteNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrDuplicateTicket):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func parseUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status"), Query: c.QueryParam("q")}
	for param, dst := range map[string]**uuid.UUID{
		"student_id":    &f.StudentID,
		"class_year_id": &f.ClassYearID,
		"treatment_id":  &f.TreatmentID,
	} {
		v := c.QueryParam(param)
		if v == "" {
			continue
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
		}
		*dst = &id
	}
	if f.Status != "" && !Status(f.Status).Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

// -- Tooth treatments --

func (h *Handler) ListToothTreatments(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListToothTreatments(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) AddToothTreatment(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	var tt ToothTreatment
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tt.PatientID = id
	if err := h.svc.AddToothTreatment(c.Request().Context(), &tt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, tt)
}

func (h *Handler) UpdateToothTreatment(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := parseUUID(c, "itemId")
	if err != nil {
		return err
	}
	var tt ToothTreatment
	if err := c.Bind(&tt); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tt.ID, tt.PatientID = itemID, id
	if err := h.svc.UpdateToothTreatment(c.Request().Context(), &tt); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, tt)
}

func (h *Handler) RemoveToothTreatment(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := parseUUID(c, "itemId")
	if err != nil {
		return err
	}
	if err := h.svc.RemoveToothTreatment(c.Request().Context(), id, itemID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetPrimaryToothTreatment(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	itemID, err := parseUUID(c, "itemId")
	if err != nil {
		return err
	}
	if err := h.svc.SetPrimaryToothTreatment(c.Request().Context(), id, itemID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Notes --

func (h *Handler) ListNotes(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListNotes(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) AddNote(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	var n Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.PatientID = id
	if user := auth.UserIDFromContext(c.Request().Context()); user != "" {
		n.Author = &user
	}
	if err := h.svc.AddNote(c.Request().Context(), &n); err != nil {
		if errors.Is(err, ErrEmptyNote) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	noteID, err := parseUUID(c, "noteId")
	if err != nil {
		return err
	}
	var n Note
	if err := c.Bind(&n); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n.ID, n.PatientID = noteID, id
	if err := h.svc.UpdateNote(c.Request().Context(), &n); err != nil {
		if errors.Is(err, ErrEmptyNote) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return err
	}
	noteID, err := parseUUID(c, "noteId")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteNote(c.Request().Context(), id, noteID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
