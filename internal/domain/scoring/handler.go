package scoring

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/uwdesk/decisioncore/internal/platform/auth"
)

const maxBatchTests = 20

type YieldRequest struct {
	TestCode string       `json:"test_code"`
	Case     CaseSnapshot `json:"case"`
}

type BatchYieldRequest struct {
	TestCodes []string     `json:"test_codes"`
	Case      CaseSnapshot `json:"case"`
}

type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleUnderwriter, auth.RoleApprover))
	g.POST("/complexity-assessments", h.AssessComplexity)
	g.POST("/test-yield-predictions", h.PredictYield)
	g.POST("/test-yield-predictions/batch", h.PredictYieldBatch)
	g.GET("/models", h.Models)
}

// Models reports the loaded weight tables and their version.
func (h *Handler) Models(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Models())
}

func (h *Handler) AssessComplexity(c echo.Context) error {
	var snap CaseSnapshot
	if err := c.Bind(&snap); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := snap.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.engine.AssessComplexity(&snap))
}

func (h *Handler) PredictYield(c echo.Context) error {
	var req YieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.TestCode) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "test_code is required")
	}
	if err := req.Case.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, h.engine.PredictYield(req.TestCode, &req.Case))
}

func (h *Handler) PredictYieldBatch(c echo.Context) error {
	var req BatchYieldRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.TestCodes) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "test_codes is required")
	}
	if len(req.TestCodes) > maxBatchTests {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("at most %d test codes per batch", maxBatchTests))
	}
	if err := req.Case.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out := make([]*YieldResult, 0, len(req.TestCodes))
	for _, code := range req.TestCodes {
		if strings.TrimSpace(code) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "test code must not be empty")
		}
		out = append(out, h.engine.PredictYield(code, &req.Case))
	}
	return c.JSON(http.StatusOK, out)
}
