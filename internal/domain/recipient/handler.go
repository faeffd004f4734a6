package recipient

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lifelink/lifelink/internal/domain/match"
	"github.com/lifelink/lifelink/internal/platform/auth"
	"github.com/lifelink/lifelink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleCoordinator, auth.RoleClinician))
	read.GET("/recipients", h.ListRecipients)
	read.GET("/recipients/:id", h.GetRecipient)
	read.GET("/recipients/:id/ranked-donors", h.RankedDonors)

	write := api.Group("", auth.RequireRole(auth.RoleCoordinator))
	write.POST("/recipients", h.RegisterRecipient)
	write.POST("/recipients/:id/deactivate", h.DeactivateRecipient)
}

type registerResponse struct {
	Recipient  *Recipient     `json:"recipient"`
	NewMatches []*match.Match `json:"newMatches"`
}

func (h *Handler) RegisterRecipient(c echo.Context) error {
	var r Recipient
	if err := c.Bind(&r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	newMatches, err := h.svc.Register(c.Request().Context(), &r)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicate):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, registerResponse{Recipient: &r, NewMatches: newMatches})
}

func (h *Handler) GetRecipient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recipient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRecipients(c echo.Context) error {
	pg := pagination.FromContext(c)
	params := SearchParams{
		BloodType: c.QueryParam("bloodType"),
		Organ:     c.QueryParam("organ"),
		Location:  c.QueryParam("location"),
	}
	if v := c.QueryParam("minUrgency"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid minUrgency")
		}
		params.MinUrgency = n
	}
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid active")
		}
		params.Active = &b
	}
	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) DeactivateRecipient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recipient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) RankedDonors(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ranked, err := h.svc.RankedDonors(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "recipient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if ranked == nil {
		ranked = []RankedDonor{}
	}
	return c.JSON(http.StatusOK, ranked)
}
