package tasks

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHandleInvitationEmail_InvalidPayload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	task := asynq.NewTask(TypeInvitationEmail, []byte("invalid json"))

	err := handler.HandleInvitationEmail(context.Background(), task)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal payload")
}

func TestHandleInvitationEmail_NotifiesExistingUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	inviter := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, inviter)
	invited := testutil.CreateTestUser(t, db)

	invitation := models.Invitation{
		Email:         invited.Email,
		Token:         "tok-1",
		OrgID:         org.ID,
		InviterUserID: inviter.ID,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	task, err := NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: invitation.ID,
		Email:        invited.Email,
		OrgName:      org.Name,
		InviterName:  inviter.Name,
		Link:         "http://localhost/api/v1/invitations/accept/tok-1",
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleInvitationEmail(context.Background(), task))

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", invited.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Content, inviter.Name)
	assert.Contains(t, notifications[0].Content, org.Name)
	assert.False(t, notifications[0].Read)
}

func TestHandleInvitationEmail_CaseInsensitiveMatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	inviter := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, inviter)
	invited := testutil.CreateTestUser(t, db)

	upper := "TEST-UPPER@Example.COM"
	require.NoError(t, db.Model(invited).Update("email", "test-upper@example.com").Error)

	invitation := models.Invitation{
		Email:         upper,
		Token:         "tok-2",
		OrgID:         org.ID,
		InviterUserID: inviter.ID,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	task, err := NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: invitation.ID,
		Email:        upper,
		OrgName:      org.Name,
		InviterName:  inviter.Name,
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleInvitationEmail(context.Background(), task))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Where("user_id = ?", invited.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHandleInvitationEmail_UnknownAddress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	inviter := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, inviter)

	invitation := models.Invitation{
		Email:         "nobody@example.com",
		Token:         "tok-3",
		OrgID:         org.ID,
		InviterUserID: inviter.ID,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	task, err := NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: invitation.ID,
		Email:        "nobody@example.com",
		OrgName:      org.Name,
		InviterName:  inviter.Name,
	})
	require.NoError(t, err)

	// No account to notify, but delivery still succeeds
	require.NoError(t, handler.HandleInvitationEmail(context.Background(), task))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestHandleInvitationEmail_SkipsRevoked(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	task, err := NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: 9999,
		Email:        "gone@example.com",
	})
	require.NoError(t, err)

	// Deleted before the worker picked it up: not an error, not retried
	assert.NoError(t, handler.HandleInvitationEmail(context.Background(), task))
}

func TestHandleInvitationEmail_SkipsAccepted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	handler := NewHandler(db, testLogger())

	inviter := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, inviter)
	invited := testutil.CreateTestUser(t, db)

	invitation := models.Invitation{
		Email:         invited.Email,
		Token:         "tok-4",
		OrgID:         org.ID,
		InviterUserID: inviter.ID,
		Accepted:      true,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(&invitation).Error)

	task, err := NewInvitationEmailTask(InvitationEmailPayload{
		InvitationID: invitation.ID,
		Email:        invited.Email,
		OrgName:      org.Name,
		InviterName:  inviter.Name,
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleInvitationEmail(context.Background(), task))

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}
