package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/repository"
)

type SignalsHandler struct {
	Repo repository.Repository
}

func (h *SignalsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/trading/:user_id")
	g.GET("/signals", h.list)
}

func (h *SignalsHandler) list(c *gin.Context) {
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
	params := repository.ListTradeSignalsParams{
		Limit:          limit,
		Offset:         offset,
		UserID:         &userID,
		Symbol:         strQueryPtr(c, "symbol"),
		Strategy:       strQueryPtr(c, "strategy"),
		BacktestStatus: strQueryPtr(c, "backtest_status"),
		OrderBy:        "created_at",
	}
	items, err := h.Repo.ListTradeSignals(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, listMeta(limit, offset, len(items)))
}
