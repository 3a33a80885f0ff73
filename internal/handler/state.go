package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/governor"
	"autotrader/internal/repository"
)

type StateHandler struct {
	Repo     repository.Repository
	Governor *governor.Governor
}

func (h *StateHandler) Register(r *gin.Engine) {
	g := r.Group("/api/trading/:user_id")
	g.GET("/state", h.get)
	g.POST("/start", h.start)
	g.POST("/stop", h.stop)
}

func (h *StateHandler) get(c *gin.Context) {
	if h.Governor == nil {
		Error(c, http.StatusInternalServerError, "governor unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	st, err := h.Governor.State(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, st, nil)
}

// start is the only path out of a governor pause. It clears today's pause
// and re-enables the settings flag in one action.
func (h *StateHandler) start(c *gin.Context) {
	if h.Governor == nil {
		Error(c, http.StatusInternalServerError, "governor unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	if err := h.Governor.Resume(c.Request.Context(), userID); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"started": true}, nil)
}

func (h *StateHandler) stop(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	s, err := h.Repo.GetSettings(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if s == nil || !s.Enabled {
		Ok(c, gin.H{"stopped": true}, nil)
		return
	}
	s.Enabled = false
	if err := h.Repo.UpsertSettings(c.Request.Context(), s); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"stopped": true}, nil)
}
