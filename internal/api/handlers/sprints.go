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

type SprintHandler struct {
	db      *gorm.DB
	checker *authz.Checker
}

func NewSprintHandler(db *gorm.DB, checker *authz.Checker) *SprintHandler {
	return &SprintHandler{db: db, checker: checker}
}

type SprintRequest struct {
	Name      string    `json:"name"`
	Objective string    `json:"objective,omitempty"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Status    string    `json:"status,omitempty"`
	ProjectID uint      `json:"project_id"`
}

func (r SprintRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.ProjectID == 0 {
		errors["project_id"] = "Project is required"
	}
	if r.StartDate.IsZero() {
		errors["start_date"] = "Start date is required"
	}
	if r.EndDate.IsZero() {
		errors["end_date"] = "End date is required"
	} else if !r.StartDate.IsZero() && !r.EndDate.After(r.StartDate) {
		errors["end_date"] = "End date must be after start date"
	}
	if r.Status != "" && !models.SprintStatus(r.Status).Valid() {
		errors["status"] = "Unknown status"
	}
	return errors
}

// List handles GET /api/v1/sprints, scoped to the caller's visible
// projects unless they are a site admin.
func (h *SprintHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list sprints"})
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Sprint{})
	if !isAdmin {
		projectIDs, err := h.checker.VisibleProjectIDs(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list sprints"})
			return
		}
		if len(projectIDs) == 0 {
			writeJSON(w, http.StatusOK, []models.Sprint{})
			return
		}
		query = query.Where("project_id IN ?", projectIDs)
	}

	var sprints []models.Sprint
	if err := query.Preload("Project").Order("start_date DESC").Find(&sprints).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list sprints"})
		return
	}

	writeJSON(w, http.StatusOK, sprints)
}

// ListByProject handles GET /api/v1/projects/{id}/sprints. Reads are not
// scoped beyond authentication, matching project detail reads.
func (h *SprintHandler) ListByProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var sprints []models.Sprint
	if err := h.db.WithContext(r.Context()).
		Where("project_id = ?", projectID).
		Order("start_date DESC").
		Find(&sprints).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list sprints"})
		return
	}

	writeJSON(w, http.StatusOK, sprints)
}

// Get handles GET /api/v1/sprints/{id}
func (h *SprintHandler) Get(w http.ResponseWriter, r *http.Request) {
	sprintID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var sprint models.Sprint
	if err := h.db.WithContext(r.Context()).
		Preload("Project").
		Preload("Tasks").
		First(&sprint, sprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Sprint not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get sprint"})
		return
	}

	writeJSON(w, http.StatusOK, sprint)
}

// Create handles POST /api/v1/sprints. Requires admin or scrum master of
// some team in the project's organization.
func (h *SprintHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req SprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	allowed, err := h.checker.CanCreateSprint(r.Context(), userID, req.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create sprint"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	status := models.SprintStatus(req.Status)
	if status == "" {
		status = models.SprintStatusPlanned
	}

	sprint := models.Sprint{
		Name:      req.Name,
		Objective: req.Objective,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    status,
		ProjectID: req.ProjectID,
	}
	if err := h.db.WithContext(r.Context()).Create(&sprint).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create sprint"})
		return
	}

	writeJSON(w, http.StatusCreated, sprint)
}

// Update handles PUT /api/v1/sprints/{id}. Same gate as Create, resolved
// against the sprint's own project.
func (h *SprintHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sprintID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var sprint models.Sprint
	if err := h.db.WithContext(r.Context()).First(&sprint, sprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Sprint not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update sprint"})
		return
	}

	allowed, err := h.checker.CanCreateSprint(r.Context(), userID, sprint.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update sprint"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req SprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.ProjectID = sprint.ProjectID // sprints never change project
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	sprint.Name = req.Name
	sprint.Objective = req.Objective
	sprint.StartDate = req.StartDate
	sprint.EndDate = req.EndDate
	if req.Status != "" {
		sprint.Status = models.SprintStatus(req.Status)
	}
	if err := h.db.WithContext(r.Context()).Save(&sprint).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update sprint"})
		return
	}

	writeJSON(w, http.StatusOK, sprint)
}

// Delete handles DELETE /api/v1/sprints/{id}. Same gate as Create. Tasks
// keep their rows and simply lose the sprint assignment.
func (h *SprintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sprintID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var sprint models.Sprint
	if err := h.db.WithContext(r.Context()).First(&sprint, sprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Sprint not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete sprint"})
		return
	}

	allowed, err := h.checker.CanCreateSprint(r.Context(), userID, sprint.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete sprint"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("sprint_id = ?", sprintID).
			Update("sprint_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&sprint).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete sprint"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Sprint deleted"})
}
