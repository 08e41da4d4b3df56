package dashboard

import (
	"context"

	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/gorm"
)

// Stats is the landing-page summary. Site admins see site-wide counts;
// everyone else sees counts scoped to what they can reach.
type Stats struct {
	IsSiteAdmin     bool             `json:"is_site_admin"`
	UserCount       int64            `json:"user_count,omitempty"`
	ProjectCount    int64            `json:"project_count"`
	TeamCount       int64            `json:"team_count"`
	TaskCount       int64            `json:"task_count"`
	TasksByStatus   map[string]int64 `json:"tasks_by_status"`
	TasksByPriority map[string]int64 `json:"tasks_by_priority"`
}

type Service struct {
	db      *gorm.DB
	checker *authz.Checker
}

func NewService(db *gorm.DB, checker *authz.Checker) *Service {
	return &Service{db: db, checker: checker}
}

func (s *Service) Stats(ctx context.Context, userID uint) (*Stats, error) {
	isAdmin, err := s.checker.IsSiteAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	if isAdmin {
		return s.siteStats(ctx)
	}
	return s.scopedStats(ctx, userID)
}

func (s *Service) siteStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{IsSiteAdmin: true}

	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&models.User{}, &stats.UserCount},
		{&models.Project{}, &stats.ProjectCount},
		{&models.Team{}, &stats.TeamCount},
		{&models.Task{}, &stats.TaskCount},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	var err error
	stats.TasksByStatus, err = s.groupTasks(ctx, "status", nil)
	if err != nil {
		return nil, err
	}
	stats.TasksByPriority, err = s.groupTasks(ctx, "priority", nil)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) scopedStats(ctx context.Context, userID uint) (*Stats, error) {
	stats := &Stats{}

	projectIDs, err := s.checker.VisibleProjectIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.ProjectCount = int64(len(projectIDs))

	teamIDs, err := s.checker.VisibleTeamIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats.TeamCount = int64(len(teamIDs))

	taskScope := func(q *gorm.DB) *gorm.DB {
		if len(projectIDs) == 0 {
			return q.Where("assignee_id = ?", userID)
		}
		return q.Where("assignee_id = ? OR project_id IN ?", userID, projectIDs)
	}

	if err := taskScope(s.db.WithContext(ctx).Model(&models.Task{})).
		Count(&stats.TaskCount).Error; err != nil {
		return nil, err
	}

	stats.TasksByStatus, err = s.groupTasks(ctx, "status", taskScope)
	if err != nil {
		return nil, err
	}
	stats.TasksByPriority, err = s.groupTasks(ctx, "priority", taskScope)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) groupTasks(ctx context.Context, column string, scope func(*gorm.DB) *gorm.DB) (map[string]int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Task{})
	if scope != nil {
		q = scope(q)
	}

	var rows []struct {
		Key   string
		Count int64
	}
	if err := q.Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}
