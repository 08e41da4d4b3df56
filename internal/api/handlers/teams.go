package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/lifecycle"
	"gorm.io/gorm"
)

type TeamHandler struct {
	db        *gorm.DB
	checker   *authz.Checker
	lifecycle *lifecycle.Service
}

func NewTeamHandler(db *gorm.DB, checker *authz.Checker, lc *lifecycle.Service) *TeamHandler {
	return &TeamHandler{db: db, checker: checker, lifecycle: lc}
}

type TeamRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OrgID       uint   `json:"org_id"`
}

func (r TeamRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.OrgID == 0 {
		errors["org_id"] = "Organization is required"
	}
	return errors
}

// List handles GET /api/v1/teams with an optional ?org_id filter. Site
// admins see all teams; everyone else only the teams they belong to.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list teams"})
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Team{})
	if !isAdmin {
		teamIDs, err := h.checker.VisibleTeamIDs(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list teams"})
			return
		}
		if len(teamIDs) == 0 {
			writeJSON(w, http.StatusOK, []models.Team{})
			return
		}
		query = query.Where("id IN ?", teamIDs)
	}

	if raw := r.URL.Query().Get("org_id"); raw != "" {
		orgID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid org_id"})
			return
		}
		query = query.Where("org_id = ?", orgID)
	}

	var teams []models.Team
	if err := query.Order("created_at DESC").Find(&teams).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list teams"})
		return
	}

	writeJSON(w, http.StatusOK, teams)
}

// Get handles GET /api/v1/teams/{id}
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var team models.Team
	if err := h.db.WithContext(r.Context()).
		Preload("Organization").
		Preload("Members.User").
		First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get team"})
		return
	}

	writeJSON(w, http.StatusOK, team)
}

// Create handles POST /api/v1/teams. Restricted to site admins and the
// target organization's admin.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req TeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	allowed, err := h.canManageOrgTeams(r, userID, req.OrgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create team"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	team := models.Team{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       req.OrgID,
	}
	if err := h.db.WithContext(r.Context()).Create(&team).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create team"})
		return
	}

	writeJSON(w, http.StatusCreated, team)
}

// Update handles PUT /api/v1/teams/{id}. Requires team admin.
func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.IsTeamAdmin(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update team"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var team models.Team
	if err := h.db.WithContext(r.Context()).First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update team"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"name": "Name is required"}})
		return
	}

	team.Name = req.Name
	team.Description = req.Description
	if err := h.db.WithContext(r.Context()).Save(&team).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update team"})
		return
	}

	writeJSON(w, http.StatusOK, team)
}

// Delete handles DELETE /api/v1/teams/{id}. Requires team admin; removes
// the team with its memberships.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.IsTeamAdmin(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete team"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	if err := h.lifecycle.DeleteTeam(r.Context(), teamID); err != nil {
		if errors.Is(err, lifecycle.ErrTeamNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete team"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Team deleted"})
}

func (h *TeamHandler) canManageOrgTeams(r *http.Request, userID, orgID uint) (bool, error) {
	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil || isAdmin {
		return isAdmin, err
	}

	var org models.Organization
	if err := h.db.WithContext(r.Context()).Select("id", "admin_id").First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return org.AdminID == userID, nil
}
