package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ambroise/taskforge/internal/api/dto"
	"github.com/ambroise/taskforge/internal/api/handlers"
	"github.com/ambroise/taskforge/internal/api/middleware"
	"github.com/ambroise/taskforge/internal/authz"
	"github.com/ambroise/taskforge/internal/database/models"
	"github.com/ambroise/taskforge/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTaskTestRouter(t *testing.T) (*chi.Mux, *testutil.TestSetup) {
	tc := testutil.NewTestContext(t)

	checker := authz.NewChecker(tc.DB)
	handler := handlers.NewTaskHandler(tc.DB, checker)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tc.JWTService))
		r.Get("/api/v1/tasks", handler.List)
		r.Post("/api/v1/tasks", handler.Create)
		r.Get("/api/v1/tasks/{id}", handler.Get)
		r.Put("/api/v1/tasks/{id}", handler.Update)
		r.Delete("/api/v1/tasks/{id}", handler.Delete)
	})

	return r, tc
}

func TestTaskHandler_Create(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	team := testutil.CreateTestTeam(t, tc.DB, tc.Org)
	project := testutil.CreateTestProject(t, tc.DB, tc.Org)

	t.Run("project tester can create", func(t *testing.T) {
		tester := testutil.CreateTestUser(t, tc.DB)
		testutil.AddProjectMember(t, tc.DB, tester, project, models.ProjectRoleTester)
		token := testutil.GenerateTestToken(t, tc.JWTService, tester)

		body := map[string]interface{}{
			"title":      "Fix the flaky login",
			"type":       "bug",
			"priority":   "high",
			"project_id": project.ID,
		}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var task models.Task
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
		assert.Equal(t, "Fix the flaky login", task.Title)
		assert.Equal(t, models.TaskTypeBug, task.Type)
		assert.Equal(t, models.TaskPriorityHigh, task.Priority)
		assert.Equal(t, models.TaskStatusTodo, task.Status)
		assert.Equal(t, tester.ID, task.CreatorID)
	})

	t.Run("org QA without project membership can create", func(t *testing.T) {
		qa := testutil.CreateTestUser(t, tc.DB)
		testutil.AddTeamMember(t, tc.DB, qa, team, models.TeamRoleQA)
		token := testutil.GenerateTestToken(t, tc.JWTService, qa)

		body := map[string]interface{}{"title": "QA pass", "project_id": project.ID}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("project developer cannot create", func(t *testing.T) {
		dev := testutil.CreateTestUser(t, tc.DB)
		testutil.AddProjectMember(t, tc.DB, dev, project, models.ProjectRoleDeveloper)
		token := testutil.GenerateTestToken(t, tc.JWTService, dev)

		body := map[string]interface{}{"title": "Nope", "project_id": project.ID}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("missing title", func(t *testing.T) {
		tester := testutil.CreateTestUser(t, tc.DB)
		testutil.AddProjectMember(t, tc.DB, tester, project, models.ProjectRoleTester)
		token := testutil.GenerateTestToken(t, tc.JWTService, tester)

		body := map[string]interface{}{"project_id": project.ID}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown priority", func(t *testing.T) {
		tester := testutil.CreateTestUser(t, tc.DB)
		testutil.AddProjectMember(t, tc.DB, tester, project, models.ProjectRoleTester)
		token := testutil.GenerateTestToken(t, tc.JWTService, tester)

		body := map[string]interface{}{"title": "X", "priority": "apocalyptic", "project_id": project.ID}
		req := testutil.AuthenticatedRequest(t, "POST", "/api/v1/tasks", body, token)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestTaskHandler_List_Scoped(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	team := testutil.CreateTestTeam(t, tc.DB, tc.Org)
	project := testutil.CreateTestProject(t, tc.DB, tc.Org)

	otherOwner := testutil.CreateTestUser(t, tc.DB)
	otherOrg := testutil.CreateTestOrg(t, tc.DB, otherOwner)
	hiddenProject := testutil.CreateTestProject(t, tc.DB, otherOrg)

	user := testutil.CreateTestUser(t, tc.DB)
	testutil.AddTeamMember(t, tc.DB, user, team, models.TeamRoleMember)
	token := testutil.GenerateTestToken(t, tc.JWTService, user)

	inProject := testutil.CreateTestTask(t, tc.DB, project, tc.User)
	testutil.CreateTestTask(t, tc.DB, hiddenProject, otherOwner)
	assigned := testutil.CreateTestTask(t, tc.DB, hiddenProject, otherOwner)
	require.NoError(t, tc.DB.Model(assigned).Update("assignee_id", user.ID).Error)

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks", nil, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.PaginatedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var taskList []models.Task
	require.NoError(t, json.Unmarshal(raw, &taskList))

	ids := make([]uint, len(taskList))
	for i, task := range taskList {
		ids[i] = task.ID
	}
	assert.ElementsMatch(t, []uint{inProject.ID, assigned.ID}, ids)
}

func TestTaskHandler_List_Filters(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	admin := testutil.CreateTestUser(t, tc.DB)
	testutil.MakeSiteAdmin(t, tc.DB, admin)
	token := testutil.GenerateTestToken(t, tc.JWTService, admin)

	project := testutil.CreateTestProject(t, tc.DB, tc.Org)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User)
	require.NoError(t, tc.DB.Model(task).Update("status", models.TaskStatusInProgress).Error)
	testutil.CreateTestTask(t, tc.DB, project, tc.User)

	req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks?status=in_progress", nil, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.PaginatedResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Total)
}

func TestTaskHandler_Update_DoneTransitions(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User)

	sm := testutil.CreateTestUser(t, tc.DB)
	testutil.AddProjectMember(t, tc.DB, sm, project, models.ProjectRoleScrumMaster)
	token := testutil.GenerateTestToken(t, tc.JWTService, sm)

	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)

	// Move to done: ResolvedAt is stamped
	body := map[string]interface{}{"title": task.Title, "status": "done", "project_id": project.ID}
	req := testutil.AuthenticatedRequest(t, "PUT", path, body, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var done models.Task
	require.NoError(t, tc.DB.First(&done, task.ID).Error)
	assert.Equal(t, models.TaskStatusDone, done.Status)
	require.NotNil(t, done.ResolvedAt)

	// Reopen: ResolvedAt is cleared
	body["status"] = "in_progress"
	req = testutil.AuthenticatedRequest(t, "PUT", path, body, token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var reopened models.Task
	require.NoError(t, tc.DB.First(&reopened, task.ID).Error)
	assert.Equal(t, models.TaskStatusInProgress, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
	assert.NotNil(t, reopened.UpdatedAt)
}

func TestTaskHandler_Update_Forbidden(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User)

	dev := testutil.CreateTestUser(t, tc.DB)
	testutil.AddProjectMember(t, tc.DB, dev, project, models.ProjectRoleDeveloper)
	token := testutil.GenerateTestToken(t, tc.JWTService, dev)

	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)
	body := map[string]interface{}{"title": "Hijacked", "project_id": project.ID}
	req := testutil.AuthenticatedRequest(t, "PUT", path, body, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestTaskHandler_Delete(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User)

	require.NoError(t, tc.DB.Create(&models.Comment{Content: "hello", TaskID: task.ID, UserID: tc.User.ID}).Error)
	require.NoError(t, tc.DB.Create(&models.Attachment{FileName: "notes.pdf", FileURL: "/x/notes.pdf", TaskID: task.ID, UserID: tc.User.ID}).Error)

	po := testutil.CreateTestUser(t, tc.DB)
	testutil.AddProjectMember(t, tc.DB, po, project, models.ProjectRoleProductOwner)
	token := testutil.GenerateTestToken(t, tc.JWTService, po)

	path := fmt.Sprintf("/api/v1/tasks/%d", task.ID)
	req := testutil.AuthenticatedRequest(t, "DELETE", path, nil, token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var taskCount, commentCount, attachmentCount int64
	require.NoError(t, tc.DB.Model(&models.Task{}).Where("id = ?", task.ID).Count(&taskCount).Error)
	require.NoError(t, tc.DB.Model(&models.Comment{}).Where("task_id = ?", task.ID).Count(&commentCount).Error)
	require.NoError(t, tc.DB.Model(&models.Attachment{}).Where("task_id = ?", task.ID).Count(&attachmentCount).Error)
	assert.Zero(t, taskCount)
	assert.Zero(t, commentCount)
	assert.Zero(t, attachmentCount)
}

func TestTaskHandler_Get(t *testing.T) {
	router, tc := setupTaskTestRouter(t)
	defer tc.Cleanup()

	project := testutil.CreateTestProject(t, tc.DB, tc.Org)
	task := testutil.CreateTestTask(t, tc.DB, project, tc.User)

	req := testutil.AuthenticatedRequest(t, "GET", fmt.Sprintf("/api/v1/tasks/%d", task.ID), nil, tc.Token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var got models.Task
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, task.ID, got.ID)
	require.NotNil(t, got.Project)
	assert.Equal(t, project.ID, got.Project.ID)

	req = testutil.AuthenticatedRequest(t, "GET", "/api/v1/tasks/99999", nil, tc.Token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
