package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeInvitationEmail, h.HandleInvitationEmail)
}

// HandleInvitationEmail delivers an invitation. If the invited address
// already belongs to an account, an in-app notification is created too.
// Actual mail transport is logged; SMTP wiring lives outside this service.
func (h *Handler) HandleInvitationEmail(ctx context.Context, t *asynq.Task) error {
	var payload InvitationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	var invitation models.Invitation
	if err := h.db.WithContext(ctx).First(&invitation, payload.InvitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Invitation was revoked before delivery, nothing to do
			h.logger.Warn("invitation gone, skipping delivery", "invitation_id", payload.InvitationID)
			return nil
		}
		return err
	}
	if invitation.Accepted {
		return nil
	}

	var user models.User
	err := h.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(payload.Email)).
		First(&user).Error
	switch {
	case err == nil:
		notification := models.Notification{
			Content: fmt.Sprintf("%s vous a invité à rejoindre l'organisation %s", payload.InviterName, payload.OrgName),
			UserID:  user.ID,
		}
		if err := h.db.WithContext(ctx).Create(&notification).Error; err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unknown address, email only
	default:
		return err
	}

	h.logger.Info("invitation email sent",
		"invitation_id", payload.InvitationID,
		"email", payload.Email,
		"org", payload.OrgName,
		"link", payload.Link,
	)

	return nil
}
