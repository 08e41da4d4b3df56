package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ambroise/taskforge/internal/auth"
	"github.com/ambroise/taskforge/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq uint64

func next() uint64 {
	return atomic.AddUint64(&seq, 1)
}

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Organization{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Sprint{},
		&models.Task{},
		&models.Comment{},
		&models.Attachment{},
		&models.Notification{},
		&models.Invitation{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestUser creates a user with a unique email
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("Testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	n := next()
	user := &models.User{
		Name:         fmt.Sprintf("Test User %d", n),
		Email:        fmt.Sprintf("test-%d@example.com", n),
		PasswordHash: hash,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// MakeSiteAdmin inserts the admin marker row for the user
func MakeSiteAdmin(t *testing.T, db *gorm.DB, user *models.User) {
	t.Helper()
	if err := db.Create(&models.Admin{UserID: user.ID}).Error; err != nil {
		t.Fatalf("failed to create admin row: %v", err)
	}
}

// CreateTestOrg creates an organization administered by the given user
func CreateTestOrg(t *testing.T, db *gorm.DB, admin *models.User) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Name:    fmt.Sprintf("Test Organization %d", next()),
		AdminID: admin.ID,
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestTeam creates a team in the given organization
func CreateTestTeam(t *testing.T, db *gorm.DB, org *models.Organization) *models.Team {
	t.Helper()

	team := &models.Team{
		Name:  fmt.Sprintf("Test Team %d", next()),
		OrgID: org.ID,
	}

	if err := db.Create(team).Error; err != nil {
		t.Fatalf("failed to create test team: %v", err)
	}

	return team
}

// CreateTestProject creates a project in the given organization
func CreateTestProject(t *testing.T, db *gorm.DB, org *models.Organization) *models.Project {
	t.Helper()

	n := next()
	project := &models.Project{
		Name:   fmt.Sprintf("Test Project %d", n),
		Key:    fmt.Sprintf("TST-%04d", n),
		Status: models.ProjectStatusPending,
		OrgID:  org.ID,
	}

	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test project: %v", err)
	}

	return project
}

// CreateTestSprint creates a sprint in the given project
func CreateTestSprint(t *testing.T, db *gorm.DB, project *models.Project) *models.Sprint {
	t.Helper()

	now := time.Now()
	sprint := &models.Sprint{
		Name:      fmt.Sprintf("Sprint %d", next()),
		StartDate: now,
		EndDate:   now.Add(14 * 24 * time.Hour),
		Status:    models.SprintStatusPlanned,
		ProjectID: project.ID,
	}

	if err := db.Create(sprint).Error; err != nil {
		t.Fatalf("failed to create test sprint: %v", err)
	}

	return sprint
}

// CreateTestTask creates a task in the given project
func CreateTestTask(t *testing.T, db *gorm.DB, project *models.Project, creator *models.User) *models.Task {
	t.Helper()

	task := &models.Task{
		Title:     fmt.Sprintf("Test Task %d", next()),
		Type:      models.TaskTypeTask,
		Priority:  models.TaskPriorityMedium,
		Status:    models.TaskStatusTodo,
		ProjectID: project.ID,
		CreatorID: creator.ID,
	}

	if err := db.Create(task).Error; err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	return task
}

// AddTeamMember enrolls a user in a team with the given role
func AddTeamMember(t *testing.T, db *gorm.DB, user *models.User, team *models.Team, role models.TeamRole) {
	t.Helper()

	membership := models.TeamMembership{
		UserID:  user.ID,
		TeamID:  team.ID,
		Role:    role,
		AddedAt: time.Now(),
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed to add team member: %v", err)
	}
}

// AddProjectMember enrolls a user in a project with the given role
func AddProjectMember(t *testing.T, db *gorm.DB, user *models.User, project *models.Project, role models.ProjectRole) {
	t.Helper()

	membership := models.ProjectMembership{
		UserID:    user.ID,
		ProjectID: project.ID,
		Role:      role,
		AddedAt:   time.Now(),
	}
	if err := db.Create(&membership).Error; err != nil {
		t.Fatalf("failed to add project member: %v", err)
	}
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.Email, user.Name)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	User       *models.User
	Org        *models.Organization
	Token      string
}

// NewTestContext creates a complete test setup with DB, user, org, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	user := CreateTestUser(t, db)
	org := CreateTestOrg(t, db, user)
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		User:       user,
		Org:        org,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
