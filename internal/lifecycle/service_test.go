package lifecycle_test

import (
	"errors"
	"testing"

	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/lifecycle"
	"github.com/ambroise/taskforge/internal/testutil"
	"github.com/ambroise/taskforge/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*lifecycle.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return lifecycle.NewService(db, util.NewLogger("development")), db
}

func TestCreateOrganization(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)

	org, err := svc.CreateOrganization(ctx, user.ID, "Acme", "widgets")
	require.NoError(t, err)
	assert.Equal(t, user.ID, org.AdminID)

	// Creator became a site admin
	var admin models.Admin
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&admin).Error)

	// Starter project with a 4-char key suffix
	var project models.Project
	require.NoError(t, db.Where("org_id = ?", org.ID).First(&project).Error)
	assert.Equal(t, "Acme - Projet initial", project.Name)
	assert.Equal(t, models.ProjectStatusPending, project.Status)
	assert.Len(t, project.Key, len("ACM-")+4)
	require.NotNil(t, project.StartDate)
	require.NotNil(t, project.EndDate)
	assert.True(t, project.EndDate.After(*project.StartDate))

	// Starter team
	var team models.Team
	require.NoError(t, db.Where("org_id = ?", org.ID).First(&team).Error)
	assert.Equal(t, "Acme - Équipe initiale", team.Name)
}

func TestCreateOrganization_ExistingAdmin(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)
	testutil.MakeSiteAdmin(t, db, user)

	_, err := svc.CreateOrganization(ctx, user.ID, "Second", "")
	require.NoError(t, err)

	// Still exactly one admin row
	var count int64
	require.NoError(t, db.Model(&models.Admin{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateOrganization_RollsBackOnFailure(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)

	// Make the final step (team insert) fail and verify nothing survives
	injected := errors.New("injected failure")
	require.NoError(t, db.Callback().Create().Before("gorm:create").
		Register("fail_team_create", func(tx *gorm.DB) {
			if tx.Statement.Table == "team" {
				tx.AddError(injected)
			}
		}))
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove("fail_team_create")
	})

	_, err := svc.CreateOrganization(ctx, user.ID, "Doomed", "")
	require.Error(t, err)

	var orgCount, projectCount, adminCount int64
	require.NoError(t, db.Model(&models.Organization{}).Count(&orgCount).Error)
	require.NoError(t, db.Model(&models.Project{}).Count(&projectCount).Error)
	require.NoError(t, db.Model(&models.Admin{}).Count(&adminCount).Error)
	assert.Zero(t, orgCount)
	assert.Zero(t, projectCount)
	assert.Zero(t, adminCount)
}

func TestUpdateOrganization_RenameCascade(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)

	org, err := svc.CreateOrganization(ctx, user.ID, "Old", "")
	require.NoError(t, err)

	// A team named without the prefix convention must be untouched
	custom := &models.Team{Name: "Platform crew", OrgID: org.ID}
	require.NoError(t, db.Create(custom).Error)
	// Prefix matching is case-sensitive
	nearMiss := &models.Team{Name: "old - lowercase", OrgID: org.ID}
	require.NoError(t, db.Create(nearMiss).Error)

	updated, err := svc.UpdateOrganization(ctx, org.ID, "New", "renamed")
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)

	var teams []models.Team
	require.NoError(t, db.Where("org_id = ?", org.ID).Order("id").Find(&teams).Error)

	names := make([]string, len(teams))
	for i, team := range teams {
		names[i] = team.Name
	}
	assert.Contains(t, names, "New - Équipe initiale")
	assert.Contains(t, names, "Platform crew")
	assert.Contains(t, names, "old - lowercase")
}

func TestUpdateOrganization_NotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := testutil.TestContext(t)

	_, err := svc.UpdateOrganization(ctx, 9999, "X", "")
	assert.ErrorIs(t, err, lifecycle.ErrOrganizationNotFound)
}

func TestDeleteProject_Cascade(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, owner)
	project := testutil.CreateTestProject(t, db, org)
	keeper := testutil.CreateTestProject(t, db, org)

	sprint := testutil.CreateTestSprint(t, db, project)
	task := testutil.CreateTestTask(t, db, project, owner)
	testutil.AddProjectMember(t, db, owner, project, models.ProjectRoleAdministrator)
	require.NoError(t, db.Create(&models.Comment{Content: "hi", TaskID: task.ID, UserID: owner.ID}).Error)
	require.NoError(t, db.Create(&models.Attachment{FileName: "a.txt", FileURL: "/x/a.txt", TaskID: task.ID, UserID: owner.ID}).Error)

	keeperTask := testutil.CreateTestTask(t, db, keeper, owner)

	require.NoError(t, svc.DeleteProject(ctx, project.ID))

	for _, probe := range []struct {
		name  string
		model interface{}
		where string
		arg   uint
	}{
		{"project", &models.Project{}, "id = ?", project.ID},
		{"sprints", &models.Sprint{}, "project_id = ?", project.ID},
		{"tasks", &models.Task{}, "project_id = ?", project.ID},
		{"memberships", &models.ProjectMembership{}, "project_id = ?", project.ID},
		{"comments", &models.Comment{}, "task_id = ?", task.ID},
		{"attachments", &models.Attachment{}, "task_id = ?", task.ID},
	} {
		var count int64
		require.NoError(t, db.Model(probe.model).Where(probe.where, probe.arg).Count(&count).Error)
		assert.Zero(t, count, probe.name)
	}

	// Sibling project untouched
	var count int64
	require.NoError(t, db.Model(&models.Task{}).Where("id = ?", keeperTask.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_ = sprint
}

func TestDeleteProject_RollsBackOnFailure(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, owner)
	project := testutil.CreateTestProject(t, db, org)
	testutil.CreateTestSprint(t, db, project)
	testutil.CreateTestTask(t, db, project, owner)

	injected := errors.New("injected failure")
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").
		Register("fail_sprint_delete", func(tx *gorm.DB) {
			if tx.Statement.Table == "sprint" {
				tx.AddError(injected)
			}
		}))
	t.Cleanup(func() {
		_ = db.Callback().Delete().Remove("fail_sprint_delete")
	})

	err := svc.DeleteProject(ctx, project.ID)
	require.Error(t, err)

	// Everything still present: all or nothing
	var taskCount, sprintCount, projectCount int64
	require.NoError(t, db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&taskCount).Error)
	require.NoError(t, db.Model(&models.Sprint{}).Where("project_id = ?", project.ID).Count(&sprintCount).Error)
	require.NoError(t, db.Model(&models.Project{}).Where("id = ?", project.ID).Count(&projectCount).Error)
	assert.Equal(t, int64(1), taskCount)
	assert.Equal(t, int64(1), sprintCount)
	assert.Equal(t, int64(1), projectCount)
}

func TestDeleteTeam(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, owner)
	team := testutil.CreateTestTeam(t, db, org)
	member := testutil.CreateTestUser(t, db)
	testutil.AddTeamMember(t, db, member, team, models.TeamRoleMember)

	require.NoError(t, svc.DeleteTeam(ctx, team.ID))

	var memberCount, teamCount int64
	require.NoError(t, db.Model(&models.TeamMembership{}).Where("team_id = ?", team.ID).Count(&memberCount).Error)
	require.NoError(t, db.Model(&models.Team{}).Where("id = ?", team.ID).Count(&teamCount).Error)
	assert.Zero(t, memberCount)
	assert.Zero(t, teamCount)

	// Member's user row survives
	var userCount int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", member.ID).Count(&userCount).Error)
	assert.Equal(t, int64(1), userCount)
}

func TestDeleteOrganization_Cascade(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)
	user := testutil.CreateTestUser(t, db)

	org, err := svc.CreateOrganization(ctx, user.ID, "Acme", "")
	require.NoError(t, err)

	var project models.Project
	require.NoError(t, db.Where("org_id = ?", org.ID).First(&project).Error)
	testutil.CreateTestTask(t, db, &project, user)
	testutil.CreateTestSprint(t, db, &project)

	require.NoError(t, svc.DeleteOrganization(ctx, org.ID))

	var orgCount, projectCount, teamCount, taskCount, sprintCount int64
	require.NoError(t, db.Model(&models.Organization{}).Where("id = ?", org.ID).Count(&orgCount).Error)
	require.NoError(t, db.Model(&models.Project{}).Where("org_id = ?", org.ID).Count(&projectCount).Error)
	require.NoError(t, db.Model(&models.Team{}).Where("org_id = ?", org.ID).Count(&teamCount).Error)
	require.NoError(t, db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&taskCount).Error)
	require.NoError(t, db.Model(&models.Sprint{}).Where("project_id = ?", project.ID).Count(&sprintCount).Error)
	assert.Zero(t, orgCount)
	assert.Zero(t, projectCount)
	assert.Zero(t, teamCount)
	assert.Zero(t, taskCount)
	assert.Zero(t, sprintCount)
}

func TestCreateProject(t *testing.T) {
	svc, db := newService(t)
	ctx := testutil.TestContext(t)

	owner := testutil.CreateTestUser(t, db)
	org := testutil.CreateTestOrg(t, db, owner)
	creator := testutil.CreateTestUser(t, db)

	project, err := svc.CreateProject(ctx, creator.ID, lifecycle.CreateProjectInput{
		Name:  "Billing revamp",
		OrgID: org.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ProjectStatusPending, project.Status)
	// Standalone creation uses a 5-char key suffix
	assert.Len(t, project.Key, len("BIL-")+5)

	var membership models.ProjectMembership
	require.NoError(t, db.Where("user_id = ? AND project_id = ?", creator.ID, project.ID).
		First(&membership).Error)
	assert.Equal(t, models.ProjectRoleAdministrator, membership.Role)
}
