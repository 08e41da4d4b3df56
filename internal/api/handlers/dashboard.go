package handlers

import (
	"net/http"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/dashboard"
)

type DashboardHandler struct {
	service *dashboard.Service
}

func NewDashboardHandler(service *dashboard.Service) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats handles GET /api/v1/dashboard. Site admins receive site-wide
// counts, everyone else their scoped view.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load dashboard"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
