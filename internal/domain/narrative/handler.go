package narrative

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/uwdesk/decisioncore/internal/platform/auth"
	"github.com/uwdesk/decisioncore/pkg/pagination"
)

// CreateRequest is an AssemblyRequest plus an optional variant; the service
// default applies when it is empty.
type CreateRequest struct {
	AssemblyRequest
	Variant Variant `json:"variant,omitempty"`
}

type EditSectionRequest struct {
	Content string `json:"content"`
	Editor  string `json:"editor"`
	Version int    `json:"version"`
}

type ApproveRequest struct {
	Approver string `json:"approver"`
	Version  int    `json:"version"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole(auth.RoleUnderwriter, auth.RoleApprover))
	readGroup.GET("/communications", h.List)
	readGroup.GET("/communications/:id", h.Get)
	readGroup.GET("/communications/:id/disclosures", h.Disclosures)
	readGroup.GET("/communications/:id/edits", h.Edits)

	writeGroup := api.Group("", auth.RequireRole(auth.RoleUnderwriter))
	writeGroup.POST("/communications", h.Create)
	writeGroup.POST("/communications/preview", h.Preview)
	writeGroup.PUT("/communications/:id/sections/:sid", h.EditSection)

	approveGroup := api.Group("", auth.RequireRole(auth.RoleApprover))
	approveGroup.POST("/communications/:id/approve", h.Approve)
}

// toHTTPError maps narrative errors onto status codes.
func toHTTPError(err error) error {
	var aerr *ApprovalError
	switch {
	case errors.As(err, &aerr):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, map[string]interface{}{
			"message":             aerr.Error(),
			"missing_disclosures": aerr.MissingDisclosures,
			"missing_compliance":  aerr.MissingCompliance,
		})
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "communication not found")
	case errors.Is(err, ErrSectionNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrSectionLocked), errors.Is(err, ErrNotDraft):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrEditorRequired), errors.Is(err, ErrApproverRequired), errors.Is(err, ErrUnknownVariant):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func bindCreate(c echo.Context) (*CreateRequest, error) {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Variant != "" && !req.Variant.Valid() {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "variant must be template or phrase_block")
	}
	return &req, nil
}

func (h *Handler) Create(c echo.Context) error {
	req, err := bindCreate(c)
	if err != nil {
		return err
	}
	comm, err := h.svc.Assemble(c.Request().Context(), req.Variant, &req.AssemblyRequest)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, comm)
}

func (h *Handler) Preview(c echo.Context) error {
	req, err := bindCreate(c)
	if err != nil {
		return err
	}
	comm, err := h.svc.Preview(req.Variant, &req.AssemblyRequest)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Communication{}
	}
	if link := pg.LinkHeader(c.Request().URL.Path, total); link != "" {
		c.Response().Header().Set("Link", link)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	comm, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *Handler) EditSection(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req EditSectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	editor, err := auth.ResolveActor(c.Request().Context(), req.Editor)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if editor == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "editor is required")
	}
	if req.Version <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "version is required")
	}
	comm, err := h.svc.EditSection(c.Request().Context(), id, c.Param("sid"), req.Content, editor, req.Version)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *Handler) Disclosures(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	checks, err := h.svc.Disclosures(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, checks)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req ApproveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	approver, err := auth.ResolveActor(c.Request().Context(), req.Approver)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	if approver == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "approver is required")
	}
	if req.Version <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "version is required")
	}
	comm, err := h.svc.Approve(c.Request().Context(), id, approver, req.Version)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, comm)
}

func (h *Handler) Edits(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	edits, err := h.svc.Edits(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	if edits == nil {
		edits = []EditRecord{}
	}
	return c.JSON(http.StatusOK, edits)
}
