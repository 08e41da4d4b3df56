package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/auth"
	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/storage"
	"gorm.io/gorm"
)

type ProfileHandler struct {
	db          *gorm.DB
	authService *auth.Service
	avatars     *storage.AvatarStore
}

func NewProfileHandler(db *gorm.DB, authService *auth.Service, avatars *storage.AvatarStore) *ProfileHandler {
	return &ProfileHandler{db: db, authService: authService, avatars: avatars}
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, userToDTO(user))
}

// Update handles PUT /api/v1/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	user.Name = req.Name
	user.Phone = req.Phone
	if err := h.db.WithContext(r.Context()).Save(&user).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update profile"})
		return
	}

	writeJSON(w, http.StatusOK, userToDTO(&user))
}

// UploadAvatar handles POST /api/v1/profile/avatar with a multipart form
// carrying an "avatar" file. The previous avatar file is removed best
// effort.
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := r.ParseMultipartForm(storage.MaxAvatarSize); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid upload"})
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Avatar file is required"})
		return
	}
	defer file.Close()

	var user models.User
	if err := h.db.WithContext(r.Context()).First(&user, userID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	path, err := h.avatars.Save(header.Filename, header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileTooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "File exceeds 2 MB"})
		case errors.Is(err, storage.ErrBadContentType):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "File type not allowed"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store avatar"})
		}
		return
	}

	oldAvatar := user.Avatar
	if err := h.db.WithContext(r.Context()).
		Model(&user).
		Update("avatar", path).Error; err != nil {
		h.avatars.Remove(path)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store avatar"})
		return
	}

	if oldAvatar != "" {
		h.avatars.Remove(oldAvatar)
	}

	user.Avatar = path
	writeJSON(w, http.StatusOK, userToDTO(&user))
}

// ChangePassword handles POST /api/v1/profile/password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch err {
		case auth.ErrWrongPassword:
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Current password does not match"})
		case auth.ErrUserNotFound:
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to change password"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Password changed"})
}
