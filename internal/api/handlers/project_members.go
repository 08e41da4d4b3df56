package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

type ProjectMemberHandler struct {
	db      *gorm.DB
	checker *authz.Checker
}

func NewProjectMemberHandler(db *gorm.DB, checker *authz.Checker) *ProjectMemberHandler {
	return &ProjectMemberHandler{db: db, checker: checker}
}

type AddProjectMemberRequest struct {
	UserID uint               `json:"user_id"`
	Role   models.ProjectRole `json:"role"`
}

func (r AddProjectMemberRequest) Validate() map[string]string {
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

// List handles GET /api/v1/projects/{id}/members
func (h *ProjectMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var members []models.ProjectMembership
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("project_id = ?", projectID).
		Find(&members).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members"})
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// Add handles POST /api/v1/projects/{id}/members. Allowed for site admins
// and the project's administrator or scrum master.
func (h *ProjectMemberHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.CanAddMembersToProject(r.Context(), userID, projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req AddProjectMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	var existing models.ProjectMembership
	err = h.db.WithContext(r.Context()).
		Where("user_id = ? AND project_id = ?", req.UserID, projectID).
		First(&existing).Error
	if err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User is already a member"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	membership := models.ProjectMembership{
		UserID:    req.UserID,
		ProjectID: projectID,
		Role:      req.Role,
		AddedAt:   time.Now(),
	}
	if err := h.db.WithContext(r.Context()).Create(&membership).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add member"})
		return
	}

	writeJSON(w, http.StatusCreated, membership)
}

// UpdateRole handles PUT /api/v1/projects/{id}/members/{userID}
func (h *ProjectMemberHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	allowed, err := h.checker.CanAddMembersToProject(r.Context(), userID, projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req struct {
		Role models.ProjectRole `json:"role"`
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

	var membership models.ProjectMembership
	if err := h.db.WithContext(r.Context()).
		Where("user_id = ? AND project_id = ?", memberID, projectID).
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

// Remove handles DELETE /api/v1/projects/{id}/members/{userID}
func (h *ProjectMemberHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}
	memberID, ok := parseID(w, r, "userID")
	if !ok {
		return
	}

	allowed, err := h.checker.CanAddMembersToProject(r.Context(), userID, projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("user_id = ? AND project_id = ?", memberID, projectID).
		Delete(&models.ProjectMembership{})
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
