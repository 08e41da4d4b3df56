package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db      *gorm.DB
	checker *authz.Checker
}

func NewTaskHandler(db *gorm.DB, checker *authz.Checker) *TaskHandler {
	return &TaskHandler{db: db, checker: checker}
}

type TaskRequest struct {
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Type            string  `json:"type,omitempty"`
	Priority        string  `json:"priority,omitempty"`
	Status          string  `json:"status,omitempty"`
	EstimatedEffort float64 `json:"estimated_effort,omitempty"`
	RemainingEffort float64 `json:"remaining_effort,omitempty"`
	ProjectID       uint    `json:"project_id"`
	SprintID        *uint   `json:"sprint_id,omitempty"`
	AssigneeID      *uint   `json:"assignee_id,omitempty"`
}

func (r TaskRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Title == "" {
		errors["title"] = "Title is required"
	}
	if r.ProjectID == 0 {
		errors["project_id"] = "Project is required"
	}
	if r.Type != "" && !models.TaskType(r.Type).Valid() {
		errors["type"] = "Unknown type"
	}
	if r.Priority != "" && !models.TaskPriority(r.Priority).Valid() {
		errors["priority"] = "Unknown priority"
	}
	if r.Status != "" && !models.TaskStatus(r.Status).Valid() {
		errors["status"] = "Unknown status"
	}
	if r.EstimatedEffort < 0 {
		errors["estimated_effort"] = "Effort cannot be negative"
	}
	if r.RemainingEffort < 0 {
		errors["remaining_effort"] = "Effort cannot be negative"
	}
	return errors
}

// List handles GET /api/v1/tasks with optional status, priority, project_id
// and sprint_id filters. Non-admins see tasks assigned to them plus every
// task of their visible projects.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.Task{})
	if !isAdmin {
		projectIDs, err := h.checker.VisibleProjectIDs(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
			return
		}
		if len(projectIDs) == 0 {
			query = query.Where("assignee_id = ?", userID)
		} else {
			query = query.Where("assignee_id = ? OR project_id IN ?", userID, projectIDs)
		}
	}

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if raw := r.URL.Query().Get("project_id"); raw != "" {
		query = query.Where("project_id = ?", raw)
	}
	if raw := r.URL.Query().Get("sprint_id"); raw != "" {
		query = query.Where("sprint_id = ?", raw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count tasks"})
		return
	}

	var taskList []models.Task
	if err := query.
		Preload("Assignee").
		Preload("Sprint").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&taskList).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       taskList,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/v1/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).
		Preload("Project").
		Preload("Sprint").
		Preload("Assignee").
		Preload("Creator").
		Preload("Comments.User").
		Preload("Attachments").
		First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get task"})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Create handles POST /api/v1/tasks. Gated by CanCreateTask against the
// target project.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	allowed, err := h.checker.CanCreateTask(r.Context(), userID, req.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	taskType := models.TaskType(req.Type)
	if taskType == "" {
		taskType = models.TaskTypeTask
	}
	priority := models.TaskPriority(req.Priority)
	if priority == "" {
		priority = models.TaskPriorityMedium
	}
	status := models.TaskStatus(req.Status)
	if status == "" {
		status = models.TaskStatusTodo
	}

	task := models.Task{
		Title:           req.Title,
		Description:     req.Description,
		Type:            taskType,
		Priority:        priority,
		Status:          status,
		EstimatedEffort: req.EstimatedEffort,
		RemainingEffort: req.RemainingEffort,
		ProjectID:       req.ProjectID,
		SprintID:        req.SprintID,
		AssigneeID:      req.AssigneeID,
		CreatorID:       userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// Update handles PUT /api/v1/tasks/{id}. Gated like Create; moving the
// task to done stamps ResolvedAt, moving it back clears it.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}

	allowed, err := h.checker.CanCreateTask(r.Context(), userID, task.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	req.ProjectID = task.ProjectID // tasks never change project
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	now := time.Now()
	task.Title = req.Title
	task.Description = req.Description
	if req.Type != "" {
		task.Type = models.TaskType(req.Type)
	}
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
	}
	if req.Status != "" {
		newStatus := models.TaskStatus(req.Status)
		if newStatus == models.TaskStatusDone && task.Status != models.TaskStatusDone {
			task.ResolvedAt = &now
		} else if newStatus != models.TaskStatusDone {
			task.ResolvedAt = nil
		}
		task.Status = newStatus
	}
	task.EstimatedEffort = req.EstimatedEffort
	task.RemainingEffort = req.RemainingEffort
	task.SprintID = req.SprintID
	task.AssigneeID = req.AssigneeID
	task.UpdatedAt = &now

	if err := h.db.WithContext(r.Context()).Save(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/v1/tasks/{id}. Gated like Create; removes the
// task with its comments and attachments.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete task"})
		return
	}

	allowed, err := h.checker.CanCreateTask(r.Context(), userID, task.ProjectID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete task"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	err = h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete task"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted"})
}
