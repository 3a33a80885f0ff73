package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"autotrader/internal/models"
	"autotrader/internal/repository"
)

type SettingsHandler struct {
	Repo repository.Repository
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/trading/:user_id")
	g.GET("/settings", h.get)
	g.PATCH("/settings", h.patch)
}

func (h *SettingsHandler) get(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	item, err := h.Repo.GetSettings(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		// Unconfigured users read back the defaults they would get on
		// first write.
		def := models.Settings{UserID: userID}
		def.Normalize()
		Ok(c, def, map[string]any{"defaults": true})
		return
	}
	Ok(c, item, nil)
}

// patch is a merge update: absent fields keep their current values so a
// partial settings form never clobbers unrelated fields.
func (h *SettingsHandler) patch(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	userID := userParam(c)
	if userID == "" {
		Error(c, http.StatusBadRequest, "invalid user_id", nil)
		return
	}
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	current, err := h.Repo.GetSettings(c.Request.Context(), userID)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if current == nil {
		current = &models.Settings{UserID: userID}
	}
	patch.Apply(current)
	if err := h.Repo.UpsertSettings(c.Request.Context(), current); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	next, err := h.Repo.GetSettings(c.Request.Context(), userID)
	if err != nil || next == nil {
		Ok(c, current, nil)
		return
	}
	Ok(c, next, nil)
}
