package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

type TeamMemberHandler struct {
	db      *gorm.DB
	checker *authz.Checker
}

func NewTeamMemberHandler(db *gorm.DB, checker *authz.Checker) *TeamMemberHandler {
	return &TeamMemberHandler{db: db, checker: checker}
}

type AddTeamMemberRequest struct {
	UserID uint            `json:"user_id"`
	Role   models.TeamRole `json:"role"`
}

func (r AddTeamMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.UserID == 0 {
		errors["user_id"] = "User is required"
	}
	if r.Role == "" {
		errors["role"] = "Role is required"
	} else if !r.Role.Valid() {
		errors["role"] = "Unknown role"
	}
	return errors
}

// List handles GET /api/v1/teams/{id}/members
func (h *TeamMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var members []models.TeamMembership
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("team_id = ?", teamID).
		Find(&members).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// Add handles POST /api/v1/teams/{id}/members. Allowed for site admins,
// team admins and the team's scrum master.
func (h *TeamMemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.CanAddMembersToTeam(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req AddTeamMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var team models.Team
	if err := h.db.WithContext(r.Context()).First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Team not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	var existing models.TeamMembership
	err = h.db.WithContext(r.Context()).
		Where("user_id = ? AND team_id = ?", req.UserID, teamID).
		First(&existing).Error
	if err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User is already a member"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	membership := models.TeamMembership{
		UserID:  req.UserID,
		TeamID:  teamID,
		Role:    req.Role,
		AddedAt: time.Now(),
	}
	if err := h.db.WithContext(r.Context()).Create(&membership).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	writeJSON(w, http.StatusCreated, membership)
}

// UpdateRole handles PUT /api/v1/teams/{id}/members/{userID}. Allowed for
// site admins and the team's admin, scrum master or product owner.
func (h *TeamMemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	allowed, err := h.checker.CanManageTeamMembers(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req struct {
		Role models.TeamRole `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if !req.Role.Valid() {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"role": "Unknown role"}})
		return
	}

	var membership models.TeamMembership
	if err := h.db.WithContext(r.Context()).
		Where("user_id = ? AND team_id = ?", memberID, teamID).
		First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Membership not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}

	if err := h.db.WithContext(r.Context()).
		Model(&membership).
		Update("role", req.Role).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}

	membership.Role = req.Role
	writeJSON(w, http.StatusOK, membership)
}

// Remove handles DELETE /api/v1/teams/{id}/members/{userID}. Same gate as
// UpdateRole.
func (h *TeamMemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	allowed, err := h.checker.CanManageTeamMembers(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("user_id = ? AND team_id = ?", memberID, teamID).
		Delete(&models.TeamMembership{})
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Membership not found"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}

// SearchUsers handles GET /api/v1/teams/{id}/members/search?q=. Lets a
// member manager find users by name or email before adding them.
func (h *TeamMemberHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	teamID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.CanAddMembersToTeam(r.Context(), userID, teamID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to search users"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []dto.UserDTO{})
		return
	}

	var users []models.User
	pattern := "%" + strings.ToLower(q) + "%"
	if err := h.db.WithContext(r.Context()).
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern).
		Limit(20).
		Find(&users).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to search users"})
		return
	}

	out := make([]dto.UserDTO, len(users))
	for i := range users {
		out[i] = userToDTO(&users[i])
	}
	writeJSON(w, http.StatusOK, out)
}
