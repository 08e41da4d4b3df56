package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

// Comments and attachments hang off tasks and share the task handler's
// dependencies.

type CommentRequest struct {
	Content string `json:"content"`
}

// ListComments handles GET /api/v1/tasks/{id}/comments
func (h *TaskHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var comments []models.Comment
	if err := h.db.WithContext(r.Context()).
		Preload("User").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list comments"})
		return
	}

	writeJSON(w, http.StatusOK, comments)
}

// AddComment handles POST /api/v1/tasks/{id}/comments. Any authenticated
// user who can reach the task may comment.
func (h *TaskHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"content": "Content is required"}})
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add comment"})
		return
	}

	comment := models.Comment{
		Content: req.Content,
		TaskID:  taskID,
		UserID:  userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&comment).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add comment"})
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

type AttachmentRequest struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

func (r AttachmentRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.FileName == "" {
		errors["file_name"] = "File name is required"
	}
	if r.FileURL == "" {
		errors["file_url"] = "File URL is required"
	}
	return errors
}

// ListAttachments handles GET /api/v1/tasks/{id}/attachments
func (h *TaskHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var attachments []models.Attachment
	if err := h.db.WithContext(r.Context()).
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&attachments).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list attachments"})
		return
	}

	writeJSON(w, http.StatusOK, attachments)
}

// AddAttachment handles POST /api/v1/tasks/{id}/attachments. Records the
// metadata of an already uploaded file.
func (h *TaskHandler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	taskID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var req AttachmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var task models.Task
	if err := h.db.WithContext(r.Context()).First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add attachment"})
		return
	}

	attachment := models.Attachment{
		FileName: req.FileName,
		FileURL:  req.FileURL,
		TaskID:   taskID,
		UserID:   userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&attachment).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add attachment"})
		return
	}

	writeJSON(w, http.StatusCreated, attachment)
}
