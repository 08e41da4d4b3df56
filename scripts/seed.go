//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ambroise/taskforge/internal/auth"
	"github.com/ambroise/taskforge/internal/database"
	"github.com/ambroise/taskforge/internal/lifecycle"
	"github.com/ambroise/taskforge/pkg/config"
	"github.com/ambroise/taskforge/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService)

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ADMIN_NAME")
	orgName := os.Getenv("ADMIN_ORG")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "Admin123!"
	}
	if name == "" {
		name = "Admin"
	}
	if orgName == "" {
		orgName = "Default Organization"
	}

	resp, err := authService.Register(context.Background(), auth.RegisterInput{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		if err == auth.ErrUserExists {
			fmt.Printf("Admin user already exists: %s\n", email)
			return
		}
		log.Fatalf("failed to create admin user: %v", err)
	}

	// Founding the organization also makes the user a site admin and seeds
	// a starter project and team
	lc := lifecycle.NewService(db, logger)
	org, err := lc.CreateOrganization(context.Background(), resp.User.ID, orgName, "")
	if err != nil {
		log.Fatalf("failed to create organization: %v", err)
	}

	fmt.Printf("Admin user created successfully!\n")
	fmt.Printf("Email: %s\n", resp.User.Email)
	fmt.Printf("Organization: %s\n", org.Name)
	fmt.Printf("Token: %s\n", resp.Token)
}
