package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeInvitationEmail = "invitation:email"
)

// InvitationEmailPayload carries everything the worker needs to deliver an
// invitation without reloading the inviter.
type InvitationEmailPayload struct {
	InvitationID uint   `json:"invitation_id"`
	Email        string `json:"email"`
	OrgName      string `json:"org_name"`
	InviterName  string `json:"inviter_name"`
	Link         string `json:"link"`
}

func NewInvitationEmailTask(payload InvitationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeInvitationEmail, data), nil
}
