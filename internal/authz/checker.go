package authz

import (
	"context"
	"errors"

	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

// Checker answers permission questions against the current membership
// tables. All predicates are read-only, return false for the anonymous
// user (id 0), and treat a site admin row as dominating every other rule.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) *Checker {
	return &Checker{db: db}
}

// IsSiteAdmin reports whether the user has a row in the admin table.
func (c *Checker) IsSiteAdmin(ctx context.Context, userID uint) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var admin models.Admin
	err := c.db.WithContext(ctx).Where("user_id = ?", userID).First(&admin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Checker) hasTeamRole(ctx context.Context, userID, teamID uint, roles ...models.TeamRole) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ? AND team_id = ? AND role IN ?", userID, teamID, roles).
		Count(&count).Error
	return count > 0, err
}

func (c *Checker) hasProjectRole(ctx context.Context, userID, projectID uint, roles ...models.ProjectRole) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.ProjectMembership{}).
		Where("user_id = ? AND project_id = ? AND role IN ?", userID, projectID, roles).
		Count(&count).Error
	return count > 0, err
}

// hasTeamRoleInOrgOf reports whether the user holds one of the given team
// roles in any team belonging to the given project's organization. This is
// the bridge that lets org-level team roles act on projects they have no
// direct membership in.
func (c *Checker) hasTeamRoleInOrgOf(ctx context.Context, userID, projectID uint, roles ...models.TeamRole) (bool, error) {
	if userID == 0 {
		return false, nil
	}

	var project models.Project
	if err := c.db.WithContext(ctx).Select("id", "org_id").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	var teamIDs []uint
	if err := c.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("org_id = ?", project.OrgID).
		Pluck("id", &teamIDs).Error; err != nil {
		return false, err
	}
	if len(teamIDs) == 0 {
		return false, nil
	}

	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ? AND team_id IN ? AND role IN ?", userID, teamIDs, roles).
		Count(&count).Error
	return count > 0, err
}

// IsTeamAdmin reports whether the user is an admin of the given team.
// Site admins qualify regardless of membership.
func (c *Checker) IsTeamAdmin(ctx context.Context, userID, teamID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRole(ctx, userID, teamID, models.TeamRoleAdmin)
}

// IsAnyTeamAdmin reports whether the user is an admin of at least one team.
func (c *Checker) IsAnyTeamAdmin(ctx context.Context, userID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	var count int64
	err := c.db.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ? AND role = ?", userID, models.TeamRoleAdmin).
		Count(&count).Error
	return count > 0, err
}

// IsScrumMasterOfTeam reports whether the user is the given team's scrum
// master. Site admins qualify.
func (c *Checker) IsScrumMasterOfTeam(ctx context.Context, userID, teamID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRole(ctx, userID, teamID, models.TeamRoleScrumMaster)
}

// CanAddMembersToTeam allows site admins, team admins and the team's scrum
// master.
func (c *Checker) CanAddMembersToTeam(ctx context.Context, userID, teamID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRole(ctx, userID, teamID,
		models.TeamRoleAdmin, models.TeamRoleScrumMaster)
}

// CanManageTeamMembers allows site admins and the team's admin, scrum
// master or product owner. Used for role changes and removals.
func (c *Checker) CanManageTeamMembers(ctx context.Context, userID, teamID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRole(ctx, userID, teamID,
		models.TeamRoleAdmin, models.TeamRoleScrumMaster, models.TeamRoleProductOwner)
}

// IsProjectAdmin reports whether the user holds the administrator role on
// the project. Site admins qualify.
func (c *Checker) IsProjectAdmin(ctx context.Context, userID, projectID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasProjectRole(ctx, userID, projectID, models.ProjectRoleAdministrator)
}

// CanAddMembersToProject allows site admins and project administrators or
// scrum masters.
func (c *Checker) CanAddMembersToProject(ctx context.Context, userID, projectID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasProjectRole(ctx, userID, projectID,
		models.ProjectRoleAdministrator, models.ProjectRoleScrumMaster)
}

// IsScrumMasterOfProject resolves through the project's organization: the
// user must be scrum master of some team in that org. A scrum_master role
// held directly on the project does not count here.
func (c *Checker) IsScrumMasterOfProject(ctx context.Context, userID, projectID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRoleInOrgOf(ctx, userID, projectID, models.TeamRoleScrumMaster)
}

// CanCreateSprint allows site admins and users who are admin or scrum
// master of any team in the project's organization.
func (c *Checker) CanCreateSprint(ctx context.Context, userID, projectID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}
	return c.hasTeamRoleInOrgOf(ctx, userID, projectID,
		models.TeamRoleAdmin, models.TeamRoleScrumMaster)
}

// CanCreateTask allows site admins, then either path: a qualifying role
// held directly on the project, or a qualifying team role anywhere in the
// project's organization.
func (c *Checker) CanCreateTask(ctx context.Context, userID, projectID uint) (bool, error) {
	if ok, err := c.IsSiteAdmin(ctx, userID); err != nil || ok {
		return ok, err
	}

	ok, err := c.hasProjectRole(ctx, userID, projectID,
		models.ProjectRoleProductOwner, models.ProjectRoleScrumMaster, models.ProjectRoleTester)
	if err != nil || ok {
		return ok, err
	}

	return c.hasTeamRoleInOrgOf(ctx, userID, projectID,
		models.TeamRoleScrumMaster, models.TeamRoleProductOwner, models.TeamRoleQA)
}
