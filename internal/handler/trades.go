package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/repository"
)

type TradesHandler struct {
	Repo repository.Repository
}

func (h *TradesHandler) Register(r *gin.Engine) {
	g := r.Group("/api/trading/:user_id")
	g.GET("/trades", h.list)
}

func (h *TradesHandler) list(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	limit := intQuery(c, "limit", 100)
	offset := intQuery(c, "offset", 0)
	params := repository.ListTradesParams{
		Limit:   limit,
		Offset:  offset,
		UserID:  &userID,
		Status:  strQueryPtr(c, "status"),
		Tier:    strQueryPtr(c, "tier"),
		OrderBy: "opened_at",
	}
	items, err := h.Repo.ListTrades(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}
