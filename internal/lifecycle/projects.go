package lifecycle

import (
	"context"
	"time"

	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

type CreateProjectInput struct {
	Name        string
	Description string
	OrgID       uint
	StartDate   *time.Time
	EndDate     *time.Time
	Status      models.ProjectStatus
}

// CreateProject creates a project inside an organization and enrolls the
// creator as its administrator, in one transaction. The display key gets a
// five character suffix here, against four for the starter project created
// with an organization.
func (s *Service) CreateProject(ctx context.Context, creatorID uint, input CreateProjectInput) (*models.Project, error) {
	status := input.Status
	if status == "" {
		status = models.ProjectStatusPending
	}

	project := models.Project{
		Name:        input.Name,
		Key:         GenerateProjectKey(input.Name, 5),
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      status,
		OrgID:       input.OrgID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		membership := models.ProjectMembership{
			UserID:    creatorID,
			ProjectID: project.ID,
			Role:      models.ProjectRoleAdministrator,
			AddedAt:   time.Now(),
		}
		return tx.Create(&membership).Error
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("project created", "project_id", project.ID, "key", project.Key)
	return &project, nil
}
