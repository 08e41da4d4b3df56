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
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type OrganizationHandler struct {
	db        *gorm.DB
	checker   *authz.Checker
	lifecycle *lifecycle.Service
}

func NewOrganizationHandler(db *gorm.DB, checker *authz.Checker, lc *lifecycle.Service) *OrganizationHandler {
	return &OrganizationHandler{db: db, checker: checker, lifecycle: lc}
}

type OrganizationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (r OrganizationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	return errors
}

// List handles GET /api/v1/organizations. Site admins see every
// organization, everyone else only the ones they can reach.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	isAdmin, err := h.checker.IsSiteAdmin(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list organizations"})
		return
	}

	query := h.db.WithContext(r.Context()).Model(&models.Organization{})
	if !isAdmin {
		orgIDs, err := h.checker.VisibleOrgIDs(r.Context(), userID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list organizations"})
			return
		}
		if len(orgIDs) == 0 {
			writeJSON(w, http.StatusOK, []models.Organization{})
			return
		}
		query = query.Where("id IN ?", orgIDs)
	}

	var orgs []models.Organization
	if err := query.Order("created_at DESC").Find(&orgs).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list organizations"})
		return
	}

	writeJSON(w, http.StatusOK, orgs)
}

// Get handles GET /api/v1/organizations/{id}
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	var org models.Organization
	if err := h.db.WithContext(r.Context()).
		Preload("Teams").
		Preload("Projects").
		First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get organization"})
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// Create handles POST /api/v1/organizations. Any authenticated user can
// found an organization; the creator becomes a site admin and gets a
// starter project and team.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	org, err := h.lifecycle.CreateOrganization(r.Context(), userID, req.Name, req.Description)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create organization"})
		return
	}

	writeJSON(w, http.StatusCreated, org)
}

// Update handles PUT /api/v1/organizations/{id}. Restricted to site admins
// and the organization's own admin; renames cascade into team names.
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orgID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.canManageOrg(r, userID, orgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update organization"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	var req OrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	org, err := h.lifecycle.UpdateOrganization(r.Context(), orgID, req.Name, req.Description)
	if err != nil {
		if errors.Is(err, lifecycle.ErrOrganizationNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update organization"})
		return
	}

	writeJSON(w, http.StatusOK, org)
}

// Delete handles DELETE /api/v1/organizations/{id}. Same gate as Update;
// removes the organization and everything under it.
func (h *OrganizationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orgID, ok := parseID(w, r, "id")
	if !ok {
		return
	}

	allowed, err := h.canManageOrg(r, userID, orgID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete organization"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	if err := h.lifecycle.DeleteOrganization(r.Context(), orgID); err != nil {
		if errors.Is(err, lifecycle.ErrOrganizationNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete organization"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Organization deleted"})
}

func (h *OrganizationHandler) canManageOrg(r *http.Request, userID, orgID uint) (bool, error) {
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

// parseID reads a positive integer URL parameter, writing a 400 on failure.
func parseID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
