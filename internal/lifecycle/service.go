package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrTeamNotFound         = errors.New("team not found")
)

// Service runs the multi-step aggregate operations: organization creation
// with its default project and team, renames that cascade into team names,
// and the deep deletes. Every operation is a single transaction.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// CreateOrganization creates the organization plus its starter project and
// team, and promotes the creator to site admin if they are not one yet.
// All four steps commit together or not at all.
func (s *Service) CreateOrganization(ctx context.Context, userID uint, name, description string) (*models.Organization, error) {
	var org models.Organization

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin models.Admin
		err := tx.Where("user_id = ?", userID).First(&admin).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&models.Admin{UserID: userID}).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		org = models.Organization{
			Name:        name,
			Description: description,
			AdminID:     userID,
		}
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		now := time.Now()
		end := now.AddDate(0, 3, 0)
		project := models.Project{
			Name:        name + " - Projet initial",
			Key:         GenerateProjectKey(name, 4),
			Description: "Projet par défaut de l'organisation " + name,
			StartDate:   &now,
			EndDate:     &end,
			Status:      models.ProjectStatusPending,
			OrgID:       org.ID,
		}
		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		team := models.Team{
			Name:        name + " - Équipe initiale",
			Description: "Équipe par défaut de l'organisation " + name,
			OrgID:       org.ID,
		}
		return tx.Create(&team).Error
	})

	if err != nil {
		return nil, err
	}

	s.logger.Info("organization created", "org_id", org.ID, "admin_id", userID)
	return &org, nil
}

// UpdateOrganization renames the organization and rewrites the name prefix
// of every team named "{oldName} - ...". The match is exact and
// case-sensitive; teams named any other way keep their names.
func (s *Service) UpdateOrganization(ctx context.Context, orgID uint, name, description string) (*models.Organization, error) {
	var org models.Organization

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&org, orgID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrganizationNotFound
			}
			return err
		}

		oldName := org.Name
		org.Name = name
		org.Description = description
		if err := tx.Save(&org).Error; err != nil {
			return err
		}

		if oldName == name {
			return nil
		}

		var teams []models.Team
		if err := tx.Where("org_id = ?", orgID).Find(&teams).Error; err != nil {
			return err
		}

		oldPrefix := oldName + " - "
		for i := range teams {
			if !strings.HasPrefix(teams[i].Name, oldPrefix) {
				continue
			}
			teams[i].Name = name + teams[i].Name[len(oldName):]
			if err := tx.Save(&teams[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &org, nil
}

// DeleteOrganization removes the organization and everything under it:
// each project with its tasks and sprints, each team with its memberships,
// then the organization row.
func (s *Service) DeleteOrganization(ctx context.Context, orgID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var org models.Organization
		if err := tx.First(&org, orgID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrganizationNotFound
			}
			return err
		}

		var projects []models.Project
		if err := tx.Where("org_id = ?", orgID).Find(&projects).Error; err != nil {
			return err
		}
		for i := range projects {
			if err := deleteProjectTx(tx, &projects[i]); err != nil {
				return err
			}
		}

		var teams []models.Team
		if err := tx.Where("org_id = ?", orgID).Find(&teams).Error; err != nil {
			return err
		}
		for i := range teams {
			if err := deleteTeamTx(tx, &teams[i]); err != nil {
				return err
			}
		}

		return tx.Delete(&org).Error
	})

	if err == nil {
		s.logger.Info("organization deleted", "org_id", orgID)
	}
	return err
}

// DeleteProject removes the project and its dependents in one transaction.
func (s *Service) DeleteProject(ctx context.Context, projectID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.First(&project, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}
		return deleteProjectTx(tx, &project)
	})

	if err == nil {
		s.logger.Info("project deleted", "project_id", projectID)
	}
	return err
}

// DeleteTeam removes the team and its memberships in one transaction.
func (s *Service) DeleteTeam(ctx context.Context, teamID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTeamNotFound
			}
			return err
		}
		return deleteTeamTx(tx, &team)
	})

	if err == nil {
		s.logger.Info("team deleted", "team_id", teamID)
	}
	return err
}

// deleteProjectTx deletes dependents bottom-up: memberships, then each
// task's comments and attachments, then tasks, sprints, and the project.
func deleteProjectTx(tx *gorm.DB, project *models.Project) error {
	if err := tx.Where("project_id = ?", project.ID).
		Delete(&models.ProjectMembership{}).Error; err != nil {
		return err
	}

	var taskIDs []uint
	if err := tx.Model(&models.Task{}).
		Where("project_id = ?", project.ID).
		Pluck("id", &taskIDs).Error; err != nil {
		return err
	}
	if len(taskIDs) > 0 {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Attachment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
	}

	if err := tx.Where("project_id = ?", project.ID).Delete(&models.Sprint{}).Error; err != nil {
		return err
	}

	return tx.Delete(project).Error
}

func deleteTeamTx(tx *gorm.DB, team *models.Team) error {
	if err := tx.Where("team_id = ?", team.ID).
		Delete(&models.TeamMembership{}).Error; err != nil {
		return err
	}
	return tx.Delete(team).Error
}
