package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/reconciler"
)

type ReconcileHandler struct {
	Reconciler *reconciler.Reconciler
}

func (h *ReconcileHandler) Register(r *gin.Engine) {
	g := r.Group("/api/trading/:user_id")
	g.POST("/reconcile", h.run)
}

// run triggers an on-demand portfolio sync for one user and returns the
// drift report.
func (h *ReconcileHandler) run(c *gin.Context) {
	if h.Reconciler == nil {
		Error(c, http.StatusInternalServerError, "reconciler unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	report, err := h.Reconciler.Reconcile(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, report, nil)
}
