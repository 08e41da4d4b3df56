package authz

import (
	"context"

	"github.com/ambroise/taskforge/internal/database/models"
)

// VisibleProjectIDs returns the deduplicated set of project IDs the user
// can see: projects they are a direct member of, plus every project of any
// organization reached through one of their team memberships.
func (c *Checker) VisibleProjectIDs(ctx context.Context, userID uint) ([]uint, error) {
	if userID == 0 {
		return nil, nil
	}

	var direct []uint
	if err := c.db.WithContext(ctx).
		Model(&models.ProjectMembership{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &direct).Error; err != nil {
		return nil, err
	}

	orgIDs, err := c.teamOrgIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var viaOrgs []uint
	if len(orgIDs) > 0 {
		if err := c.db.WithContext(ctx).
			Model(&models.Project{}).
			Where("org_id IN ?", orgIDs).
			Pluck("id", &viaOrgs).Error; err != nil {
			return nil, err
		}
	}

	return dedupe(append(direct, viaOrgs...)), nil
}

// VisibleTeamIDs returns the teams the user belongs to directly.
func (c *Checker) VisibleTeamIDs(ctx context.Context, userID uint) ([]uint, error) {
	if userID == 0 {
		return nil, nil
	}
	var ids []uint
	err := c.db.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ?", userID).
		Pluck("team_id", &ids).Error
	return ids, err
}

// VisibleOrgIDs returns organizations reached through team memberships or
// through direct project memberships, deduplicated.
func (c *Checker) VisibleOrgIDs(ctx context.Context, userID uint) ([]uint, error) {
	if userID == 0 {
		return nil, nil
	}

	viaTeams, err := c.teamOrgIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	var projectIDs []uint
	if err := c.db.WithContext(ctx).
		Model(&models.ProjectMembership{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &projectIDs).Error; err != nil {
		return nil, err
	}

	var viaProjects []uint
	if len(projectIDs) > 0 {
		if err := c.db.WithContext(ctx).
			Model(&models.Project{}).
			Where("id IN ?", projectIDs).
			Pluck("org_id", &viaProjects).Error; err != nil {
			return nil, err
		}
	}

	return dedupe(append(viaTeams, viaProjects...)), nil
}

// teamOrgIDs returns the org IDs of every team the user belongs to.
func (c *Checker) teamOrgIDs(ctx context.Context, userID uint) ([]uint, error) {
	var teamIDs []uint
	if err := c.db.WithContext(ctx).
		Model(&models.TeamMembership{}).
		Where("user_id = ?", userID).
		Pluck("team_id", &teamIDs).Error; err != nil {
		return nil, err
	}
	if len(teamIDs) == 0 {
		return nil, nil
	}

	var orgIDs []uint
	err := c.db.WithContext(ctx).
		Model(&models.Team{}).
		Where("id IN ?", teamIDs).
		Distinct().
		Pluck("org_id", &orgIDs).Error
	return orgIDs, err
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
