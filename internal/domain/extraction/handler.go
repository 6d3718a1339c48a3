package extraction

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/labextract/internal/labextract"
	"github.com/ehr/labextract/internal/platform/auth"
	"github.com/ehr/labextract/internal/platform/export"
	"github.com/ehr/labextract/pkg/pagination"
)

const (
	mimeHL7  = "x-application/hl7-v2+er7"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeFHIR = "application/fhir+json"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – admin, physician, lab_tech
	readGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RolePhysician, auth.RoleLabTech))
	readGroup.GET("/extractions", h.ListExtractions)
	readGroup.GET("/extractions/:id", h.GetExtraction)
	readGroup.GET("/extractions/:id/fhir", h.GetExtractionFHIR)
	readGroup.GET("/extractions/:id/hl7", h.GetExtractionHL7)
	readGroup.GET("/extractions/:id/xlsx", h.GetExtractionXLSX)
	readGroup.GET("/engines", h.ListEngines)
	readGroup.GET("/engines/:id", h.GetEngine)
	readGroup.POST("/engines/detect", h.DetectEngine)

	// Write endpoints – admin, lab_tech
	writeGroup := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleLabTech))
	writeGroup.POST("/extractions", h.CreateExtraction)
	writeGroup.POST("/extractions/batch", h.CreateExtractionBatch)
	writeGroup.POST("/extractions/history", h.ExtractionHistory)
}

// serviceError maps service errors to HTTP errors.
func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrEmptyDocument), errors.Is(err, ErrBatchTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, labextract.ErrEngineNotRegistered), errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}

func (h *Handler) CreateExtraction(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.svc.Extract(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, labextract.ErrEngineNotRegistered) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return serviceError(err)
	}
	c.Response().Header().Set("Location", "/api/v1/extractions/"+e.ID.String())
	return c.JSON(http.StatusCreated, e)
}

type batchRequest struct {
	Documents []Request `json:"documents"`
}

type batchResponse struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

func (h *Handler) CreateExtractionBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Documents) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "documents is required")
	}
	items, err := h.svc.ExtractBatch(c.Request().Context(), req.Documents)
	if err != nil {
		return serviceError(err)
	}
	resp := batchResponse{Items: items}
	for _, it := range items {
		if it.Error != "" {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	status := http.StatusOK
	if resp.Failed > 0 {
		status = http.StatusMultiStatus
	}
	return c.JSON(status, resp)
}

func (h *Handler) ListExtractions(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		PatientRef: c.QueryParam("patient_ref"),
		EngineID:   c.QueryParam("engine"),
	}
	if v := c.QueryParam("requires_attention"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid requires_attention")
		}
		f.RequiresAttention = &b
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg).WithLinks(c.Path(), c.QueryParams()))
}

func (h *Handler) ExtractionHistory(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	items, err := h.svc.History(c.Request().Context(), req.Text)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) extraction(c echo.Context) (*Extraction, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return nil, serviceError(err)
	}
	return e, nil
}

func (h *Handler) GetExtraction(c echo.Context) error {
	e, err := h.extraction(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) GetExtractionFHIR(c echo.Context) error {
	e, err := h.extraction(c)
	if err != nil {
		return err
	}
	bundle, err := ToFHIRBundle(e)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, mimeFHIR)
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) GetExtractionHL7(c echo.Context) error {
	e, err := h.extraction(c)
	if err != nil {
		return err
	}
	msg, err := EncodeHL7(e)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return c.Blob(http.StatusOK, mimeHL7, msg)
}

func (h *Handler) GetExtractionXLSX(c echo.Context) error {
	e, err := h.extraction(c)
	if err != nil {
		return err
	}
	data, err := export.XLSX(e.ID.String(), e.Result)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="extraction-`+e.ID.String()+`.xlsx"`)
	return c.Blob(http.StatusOK, mimeXLSX, data)
}

func (h *Handler) ListEngines(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.Engines())
}

func (h *Handler) GetEngine(c echo.Context) error {
	info, err := h.svc.Engine(c.Param("id"))
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (h *Handler) DetectEngine(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	resp, err := h.svc.Detect(req.Text)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, resp)
}
