package appointment

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
	"github.com/Dragos0000/patient-appointment-api/pkg/pagination"
)

// Handler exposes appointments over HTTP, including the per-patient listing
// and the administrative sweep trigger.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Create)
	api.GET("/appointments", h.List)
	api.POST("/appointments/mark-overdue-as-missed", h.MarkOverdueAsMissed)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id", h.Update)
	api.DELETE("/appointments/:id", h.Delete)
	api.PUT("/appointments/:id/cancel", h.Cancel)
	api.PUT("/appointments/:id/attend", h.Attend)
	api.GET("/patients/:nhs_number/appointments", h.ListByPatient)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, pkgerrors.New(pkgerrors.CodeValidation, "Invalid request body"))
	}
	a, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, response{Data: a, Message: "Appointment created successfully"})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: a, Message: "Appointment retrieved successfully"})
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		NHSNumber:  c.QueryParam("patient"),
		Department: c.QueryParam("department"),
		Clinician:  c.QueryParam("clinician"),
	}
	if raw := c.QueryParam("status"); raw != "" {
		status, ok := ParseStatus(raw)
		if !ok {
			return respondError(c, pkgerrors.Validation("status", "Invalid status: must be one of scheduled, attended, cancelled, missed"))
		}
		f.Status = status
	}

	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	info := pagination.NewInfo(total, pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, listResponse{
		Data:       items,
		Pagination: &info,
		Message:    "Appointments retrieved successfully",
	})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, pkgerrors.New(pkgerrors.CodeValidation, "Invalid request body"))
	}
	a, err := h.svc.Update(c.Request().Context(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: a, Message: "Appointment updated successfully"})
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.svc.Cancel(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: a, Message: "Appointment cancelled successfully"})
}

func (h *Handler) Attend(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.svc.Attend(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: a, Message: "Appointment marked as attended"})
}

func (h *Handler) MarkOverdueAsMissed(c echo.Context) error {
	res, err := h.svc.RunOverdueSweep(c.Request().Context(), time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	marked := res.Marked
	if marked == nil {
		marked = []*Appointment{}
	}
	return c.JSON(http.StatusOK, listResponse{
		Data:    marked,
		Message: fmt.Sprintf("Marked %d overdue appointments as missed", len(marked)),
	})
}

func (h *Handler) ListByPatient(c echo.Context) error {
	items, err := h.svc.ListByPatient(c.Request().Context(), c.Param("nhs_number"))
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, listResponse{
		Data:    items,
		Message: "Patient appointments retrieved successfully",
	})
}

// parseID reads the :id path parameter. A malformed id can never name an
// appointment, so it reports the same not-found failure as an unknown one.
func parseID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "Appointment with ID %s not found", raw)
	}
	return id, nil
}

type response struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type listResponse struct {
	Data       interface{}      `json:"data"`
	Pagination *pagination.Info `json:"pagination,omitempty"`
	Message    string           `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func respondError(c echo.Context, err error) error {
	status := pkgerrors.HTTPStatus(err)
	code := string(pkgerrors.CodeOf(err))
	msg := err.Error()
	var details interface{}
	var pe *pkgerrors.Error
	if errors.As(err, &pe) {
		msg = pe.Message
		if pe.Field != "" {
			details = map[string]string{"field": pe.Field}
		}
	}
	if status == http.StatusInternalServerError {
		code = string(pkgerrors.CodeInternal)
		msg = "Internal server error"
	}
	return c.JSON(status, errorResponse{Error: errorDetail{Code: code, Message: msg, Details: details}})
}
