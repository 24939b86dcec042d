package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	pkgerrors "github.com/Dragos0000/patient-appointment-api/pkg/errors"
	"github.com/Dragos0000/patient-appointment-api/pkg/pagination"
)

// Handler exposes patient records over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.Create)
	api.GET("/patients", h.List)
	api.GET("/patients/:nhs_number", h.Get)
	api.PUT("/patients/:nhs_number", h.Update)
	api.DELETE("/patients/:nhs_number", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, pkgerrors.New(pkgerrors.CodeValidation, "Invalid request body"))
	}
	p, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, response{Data: p, Message: "Patient created successfully"})
}

func (h *Handler) Get(c echo.Context) error {
	p, err := h.svc.Get(c.Request().Context(), c.Param("nhs_number"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: p, Message: "Patient retrieved successfully"})
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return respondError(c, err)
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, listResponse{
		Data:       items,
		Pagination: pagination.NewInfo(total, pg.Limit, pg.Offset),
		Message:    "Patients retrieved successfully",
	})
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, pkgerrors.New(pkgerrors.CodeValidation, "Invalid request body"))
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("nhs_number"), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Data: p, Message: "Patient updated successfully"})
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.svc.Delete(c.Request().Context(), c.Param("nhs_number")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type response struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

type listResponse struct {
	Data       interface{}     `json:"data"`
	Pagination pagination.Info `json:"pagination"`
	Message    string          `json:"message"`
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
