package extraction

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/uwdesk/decisioncore/internal/platform/auth"
)

// ExtractRequest is the body of POST /extractions. Dictionary overrides the
// server's default dictionary for this call only.
type ExtractRequest struct {
	Text       string      `json:"text"`
	Dictionary *Dictionary `json:"dictionary,omitempty"`
}

type Handler struct {
	extractor *Extractor
}

func NewHandler(extractor *Extractor) *Handler {
	return &Handler{extractor: extractor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleUnderwriter, auth.RoleApprover))
	g.POST("/extractions", h.Extract)
}

func (h *Handler) Extract(c echo.Context) error {
	var req ExtractRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	return c.JSON(http.StatusOK, h.extractor.Extract(req.Text, req.Dictionary))
}
