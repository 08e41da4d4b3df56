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
	"github.com/ambroise/taskforge/internal/lifecycle"
	"gorm.io/gorm"
)

type ProjectHandler struct {
	db        *gorm.DB
	checker   *authz.Checker
	lifecycle *lifecycle.Service
}

func NewProjectHandler(db *gorm.DB, checker *authz.Checker, lc *lifecycle.Service) *ProjectHandler {
	return &ProjectHandler{db: db, checker: checker, lifecycle: lc}
}

type ProjectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	OrgID       uint       `json:"org_id"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Status      string     `json:"status,omitempty"`
}

func (r ProjectRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.OrgID == 0 {
		errors["org_id"] = "Organization is required"
	}
	if r.Status != "" && !models.ProjectStatus(r.Status).Valid() {
		errors["status"] = "Unknown status"
	}
	if r.StartDate != nil && r.EndDate != nil && !r.EndDate.After(*r.StartDate) {
		errors["end_date"] = "End date must be after start date"
	}
	return errors
}

// List handles GET /api/v1/projects. Site admins see everything; everyone
// else sees direct memberships plus every project of the organizations
// their teams belong to.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Project{})
	if !isAdmin {
		projectIDs, err := h.checker.VisibleProjectIDs(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
			return
		}
		if len(projectIDs) == 0 {
			writeJSON(w, http.StatusOK, []models.Project{})
			return
		}
		query = query.Where("id IN ?", projectIDs)
	}

	var projects []models.Project
	if err := query.Preload("Organization").Order("created_at DESC").Find(&projects).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list projects"})
		return
	}

	writeJSON(w, http.StatusOK, projects)
}

// Get handles GET /api/v1/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).
		Preload("Organization").
		Preload("Members.User").
		Preload("Sprints").
		First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get project"})
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Create handles POST /api/v1/projects. Any authenticated user can start a
// project in an organization they can see; the creator becomes its
// administrator.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	visible, err := h.canSeeOrg(r, userID, req.OrgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}
	if !visible {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	project, err := h.lifecycle.CreateProject(r.Context(), userID, lifecycle.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       req.OrgID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      models.ProjectStatus(req.Status),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create project"})
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

// Update handles PUT /api/v1/projects/{id}. Requires project administrator.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.IsProjectAdmin(r.Context(), userID, projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update project"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var project models.Project
	if err := h.db.WithContext(r.Context()).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update project"})
		return
	}

	var req ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.OrgID = project.OrgID // projects never change organization
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	project.Name = req.Name
	project.Description = req.Description
	project.StartDate = req.StartDate
	project.EndDate = req.EndDate
	if req.Status != "" {
		project.Status = models.ProjectStatus(req.Status)
	}
	if err := h.db.WithContext(r.Context()).Save(&project).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update project"})
		return
	}

	writeJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /api/v1/projects/{id}. Requires project
// administrator; cascades to memberships, tasks and sprints.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.checker.IsProjectAdmin(r.Context(), userID, projectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete project"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	if err := h.lifecycle.DeleteProject(r.Context(), projectID); err != nil {
		if errors.Is(err, lifecycle.ErrProjectNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Project not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete project"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Project deleted"})
}

func (h *ProjectHandler) canSeeOrg(r *http.Request, userID, orgID uint) (bool, error) {
	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil || isAdmin {
		return isAdmin, err
	}

	orgIDs, err := h.checker.VisibleOrgIDs(r.Context(), userID)
	if err != nil {
		return false, err
	}
	for _, id := range orgIDs {
		if id == orgID {
			return true, nil
		}
	}

	// The organization's own admin always qualifies
	var org models.Organization
	if err := h.db.WithContext(r.Context()).Select("id", "admin_id").First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return org.AdminID == userID, nil
}
