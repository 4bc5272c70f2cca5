package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/autoclaw/autoclaw-backend/docs"
	"github.com/autoclaw/autoclaw-backend/internal/logger"
	"github.com/autoclaw/autoclaw-backend/pkg/api/routes"
	"github.com/autoclaw/autoclaw-backend/pkg/api/servers"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/digitalocean"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/postgres/connection"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/postgres/repositories"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/sshexec"
	"github.com/autoclaw/autoclaw-backend/pkg/services"
	"github.com/autoclaw/autoclaw-backend/pkg/taskmanager"
)

// @title           AutoClaw Backend
// @version         1.0
// @description     AutoClaw - OpenClaw Provisioning Platform API

// @host      localhost:${PORT}
// @BasePath  /api/v1

// @securityDefinitions.basic  NoAuth
func main() {

	logger.Init()

	// Load .env file if it exists (optional for Docker runtime)
	if err := godotenv.Load(".env"); err != nil {
		logger.Infof("No .env file found, using environment variables: %s", err)
	}

	port := os.Getenv("PORT")

	if port == "" {
		port = "8000"
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	postgresHost := os.Getenv("POSTGRES_HOST")
	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	postgresDatabase := os.Getenv("POSTGRES_DB")
	postgresPort := os.Getenv("POSTGRES_PORT")

	postgresDB, err := connection.Init(
		postgresUser,
		postgresHost,
		postgresPassword,
		postgresDatabase,
		postgresPort,
	)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}

	doToken := os.Getenv("DIGITALOCEAN_TOKEN")
	if doToken == "" {
		logger.Fatal("DIGITALOCEAN_TOKEN is required")
	}

	sshKeyID := 0
	if raw := os.Getenv("SSH_KEY_ID"); raw != "" {
		sshKeyID, err = strconv.Atoi(raw)
		if err != nil {
			logger.Fatal("SSH_KEY_ID must be numeric", zap.Error(err))
		}
	}

	sshKeyPath, err := resolveSSHKeyPath()
	if err != nil {
		logger.Fatal("Failed to resolve SSH private key", zap.Error(err))
	}

	sshClient, err := sshexec.NewClient("root", sshKeyPath)
	if err != nil {
		logger.Fatal("Failed to load SSH private key", zap.Error(err))
	}

	doClient := digitalocean.NewClient(doToken, sshKeyID)
	configurator := services.NewConfigurator(func(ctx context.Context, ip string) (services.RemoteSession, error) {
		return sshClient.Connect(ctx, ip)
	})

	deploymentRepo := repositories.NewDeploymentRepository(postgresDB)
	taskManager := taskmanager.NewTaskManager()
	deploymentService := services.NewDeploymentService(deploymentRepo, doClient, configurator, taskManager)

	expiryService := services.NewExpiryService(deploymentRepo, doClient)
	go expiryService.Run(context.Background())

	// programmatically set swagger info
	docs.SwaggerInfo.Title = "AutoClaw Backend"
	docs.SwaggerInfo.Description = "AutoClaw - OpenClaw Provisioning Platform API"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Schemes = []string{"http"}
	docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%s", port)
	docs.SwaggerInfo.BasePath = "/api/v1"

	server := servers.NewServer(postgresDB)
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"*"}

	server.Use(cors.New(config))

	routes.SetupRoutes(server, deploymentService)

	err = server.Start(port)
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		log.Fatal(err)
	}
}

// resolveSSHKeyPath prefers SSH_PRIVATE_KEY_PATH, then a base64-encoded
// key from the environment written to a private temp file (for hosts
// with no filesystem-provisioned keys), then ~/.ssh/id_ed25519.
func resolveSSHKeyPath() (string, error) {
	if path := os.Getenv("SSH_PRIVATE_KEY_PATH"); path != "" {
		return path, nil
	}

	if encoded := os.Getenv("SSH_PRIVATE_KEY_BASE64"); encoded != "" {
		keyContent, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", fmt.Errorf("failed to decode SSH_PRIVATE_KEY_BASE64: %w", err)
		}
		keyFile, err := os.CreateTemp("", "*_ssh_key")
		if err != nil {
			return "", err
		}
		if _, err := keyFile.Write(keyContent); err != nil {
			keyFile.Close()
			return "", err
		}
		if err := keyFile.Close(); err != nil {
			return "", err
		}
		if err := os.Chmod(keyFile.Name(), 0o600); err != nil {
			return "", err
		}
		logger.Info("Using SSH key from environment variable")
		return keyFile.Name(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh", "id_ed25519"), nil
}
