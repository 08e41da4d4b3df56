package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/api/validation"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

const invitationTTL = 7 * 24 * time.Hour

type InvitationHandler struct {
	db          *gorm.DB
	checker     *authz.Checker
	asynqClient *asynq.Client
	baseURL     string
}

func NewInvitationHandler(db *gorm.DB, checker *authz.Checker, asynqClient *asynq.Client, baseURL string) *InvitationHandler {
	return &InvitationHandler{db: db, checker: checker, asynqClient: asynqClient, baseURL: baseURL}
}

type CreateInvitationRequest struct {
	Email  string          `json:"email"`
	OrgID  uint            `json:"org_id"`
	TeamID *uint           `json:"team_id,omitempty"`
	Role   models.TeamRole `json:"role,omitempty"`
}

func (r CreateInvitationRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Email is invalid"
	}
	if r.OrgID == 0 {
		errors["org_id"] = "Organization is required"
	}
	if r.Role != "" && !r.Role.Valid() {
		errors["role"] = "Unknown role"
	}
	return errors
}

// Create handles POST /api/v1/invitations. Team-scoped invitations require
// CanAddMembersToTeam; org-only invitations require the org admin or a
// site admin. Delivery is offloaded to the worker.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var org models.Organization
	if err := h.db.WithContext(r.Context()).First(&org, req.OrgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invitation"})
		return
	}

	var allowed bool
	var err error
	if req.TeamID != nil {
		allowed, err = h.checker.CanAddMembersToTeam(r.Context(), userID, *req.TeamID)
	} else {
		allowed, err = h.checker.IsSiteAdmin(r.Context(), userID)
		if err == nil && !allowed {
			allowed = org.AdminID == userID
		}
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invitation"})
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
		return
	}

	role := req.Role
	if role == "" {
		role = models.TeamRoleMember
	}

	invitation := models.Invitation{
		Email:         req.Email,
		Token:         uuid.NewString(),
		ExpiresAt:     time.Now().Add(invitationTTL),
		InviterUserID: userID,
		OrgID:         req.OrgID,
		TeamID:        req.TeamID,
		Role:          role,
	}
	if err := h.db.WithContext(r.Context()).Create(&invitation).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create invitation"})
		return
	}

	if h.asynqClient != nil {
		task, err := tasks.NewInvitationEmailTask(tasks.InvitationEmailPayload{
			InvitationID: invitation.ID,
			Email:        invitation.Email,
			OrgName:      org.Name,
			InviterName:  middleware.GetUserName(r.Context()),
			Link:         h.baseURL + "/api/v1/invitations/accept/" + invitation.Token,
		})
		if err == nil {
			if _, err := h.asynqClient.Enqueue(task); err != nil {
				// The invitation row exists either way; the token can
				// still be shared out of band
				writeJSON(w, http.StatusCreated, invitation)
				return
			}
		}
	}

	writeJSON(w, http.StatusCreated, invitation)
}

// Accept handles POST /api/v1/invitations/accept/{token}. The caller must
// be authenticated; a valid unexpired invitation is marked accepted and,
// when team-scoped, the membership is created in the same transaction.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid token"})
		return
	}

	var invitation models.Invitation
	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("token = ?", token).First(&invitation).Error; err != nil {
			return err
		}
		if invitation.Accepted {
			return errInvitationUsed
		}
		if time.Now().After(invitation.ExpiresAt) {
			return errInvitationExpired
		}

		if invitation.TeamID != nil {
			var existing models.TeamMembership
			err := tx.Where("user_id = ? AND team_id = ?", userID, *invitation.TeamID).
				First(&existing).Error
			if err == nil {
				return errAlreadyMember
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			membership := models.TeamMembership{
				UserID:  userID,
				TeamID:  *invitation.TeamID,
				Role:    invitation.Role,
				AddedAt: time.Now(),
			}
			if err := tx.Create(&membership).Error; err != nil {
				return err
			}
		}

		return tx.Model(&invitation).Update("accepted", true).Error
	})

	switch {
	case err == nil:
		invitation.Accepted = true
		writeJSON(w, http.StatusOK, invitation)
	case errors.Is(err, gorm.ErrRecordNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Invitation not found"})
	case errors.Is(err, errInvitationUsed):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Invitation already accepted"})
	case errors.Is(err, errInvitationExpired):
		writeJSON(w, http.StatusGone, dto.ErrorResponse{Error: "Invitation has expired"})
	case errors.Is(err, errAlreadyMember):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Already a member of this team"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to accept invitation"})
	}
}

var (
	errInvitationUsed    = errors.New("invitation already accepted")
	errInvitationExpired = errors.New("invitation expired")
	errAlreadyMember     = errors.New("already a member")
)
