package report

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/opdreports/internal/platform/auth"
	"github.com/ehr/opdreports/internal/platform/db"
	"github.com/ehr/opdreports/pkg/pagination"
)

type Handler struct {
	svc           *Service
	defaultTenant string
}

// NewHandler serves the report endpoints. Exports made without a tenant in
// the request context are cached under defaultTenant.
func NewHandler(svc *Service, defaultTenant string) *Handler {
	return &Handler{svc: svc, defaultTenant: defaultTenant}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	reportGroup := api.Group("/reports", auth.RequireRole("admin", "physician", "nurse"))
	reportGroup.GET("", h.ListReports)
	reportGroup.GET("/:id", h.GetReport)
	reportGroup.POST("/:id/evaluate", h.EvaluateReport)
	reportGroup.GET("/:id/export.csv", h.ExportReport)
}

// EvaluateRequest is the body of an evaluate call. Query parameters are
// merged underneath the body values.
type EvaluateRequest struct {
	Parameters map[string]string `json:"parameters"`
	DataSet    string            `json:"data_set"`
}

func (h *Handler) ListReports(c echo.Context) error {
	return c.JSON(http.StatusOK, h.svc.List())
}

func (h *Handler) GetReport(c echo.Context) error {
	def, err := h.svc.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, def)
}

func (h *Handler) EvaluateReport(c echo.Context) error {
	var req EvaluateRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	params := queryParams(c)
	for k, v := range req.Parameters {
		params[k] = v
	}

	data, err := h.svc.Run(c.Request().Context(), c.Param("id"), params)
	if err != nil {
		return httpError(err)
	}

	key := req.DataSet
	if key == "" {
		key = c.QueryParam("data_set")
	}
	if key == "" && len(data.Order) > 0 {
		key = data.Order[0]
	}
	ds, ok := data.DataSets[key]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("data set %q not found", key))
	}

	pg := pagination.FromContext(c)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"report_uuid":  data.ReportUUID,
		"report_name":  data.ReportName,
		"evaluated_at": data.EvaluatedAt,
		"parameters":   data.Parameters,
		"data_set":     key,
		"columns":      ds.Columns,
		"rows":         pagination.NewResponse(pagination.Slice(ds.Rows, pg), len(ds.Rows), pg.Limit, pg.Offset),
	})
}

func (h *Handler) ExportReport(c echo.Context) error {
	ctx := c.Request().Context()
	tenant := db.TenantFromContext(ctx)
	if tenant == "" {
		tenant = h.defaultTenant
	}

	id := c.Param("id")
	b, hit, err := h.svc.Export(ctx, id, tenant, queryParams(c))
	if err != nil {
		return httpError(err)
	}

	cacheStatus := "MISS"
	if hit {
		cacheStatus = "HIT"
	}
	c.Response().Header().Set("X-Cache", cacheStatus)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", id+".csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", b)
}

// queryParams collects report parameter values from the query string,
// skipping pagination and selector keys.
func queryParams(c echo.Context) map[string]string {
	params := map[string]string{}
	for k, v := range c.QueryParams() {
		if len(v) == 0 || strings.HasPrefix(k, "_") || k == "limit" || k == "offset" || k == "data_set" || k == "tenant_id" {
			continue
		}
		params[k] = v[0]
	}
	return params
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrReportNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrInvalidParameter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("report evaluation failed: %v", err))
}
