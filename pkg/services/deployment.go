package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
	"github.com/autoclaw/autoclaw-backend/internal/utils"
	"github.com/autoclaw/autoclaw-backend/pkg/api/dtos"
	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/digitalocean"
)

type DeploymentRepository interface {
	CreateDeployment(deployment *entities.DeploymentEntity) error
	GetDeploymentByID(id string) (*entities.DeploymentEntity, error)
	GetAllDeployments() ([]*entities.DeploymentEntity, error)
	GetDeploymentsByWallet(wallet string) ([]*entities.DeploymentEntity, error)
	GetExpiredDeployments(now time.Time) ([]*entities.DeploymentEntity, error)
	UpdateStatus(id string, status entities.DeploymentStatus) error
	UpdateFields(id string, fields map[string]interface{}) error
	DeleteDeployment(id string) error
}

type DropletProvider interface {
	ResolveSSHKey(ctx context.Context) (int, error)
	CreateDroplet(ctx context.Context, name, region string, sshKeyID int, tags []string) (int64, error)
	GetDroplet(ctx context.Context, id int64) (*digitalocean.Droplet, error)
	DestroyDroplet(ctx context.Context, id int64) error
}

type ApplianceConfigurator interface {
	ConfigureAPIKey(ctx context.Context, ip, apiKey string) error
	FetchDashboardURL(ctx context.Context, ip string) (string, error)
}

type TaskManager interface {
	Submit(id string, task entities.Task) bool
}

const (
	dropletPollInterval = 10 * time.Second
	dropletReadyTimeout = 300 * time.Second
	hostingWindow       = 7 * 24 * time.Hour
)

type DeploymentService struct {
	deploymentRepo DeploymentRepository
	provider       DropletProvider
	configurator   ApplianceConfigurator
	taskManager    TaskManager

	DropletPollInterval time.Duration
	DropletReadyTimeout time.Duration
	HostingWindow       time.Duration
}

func NewDeploymentService(
	deploymentRepo DeploymentRepository,
	provider DropletProvider,
	configurator ApplianceConfigurator,
	taskManager TaskManager,
) *DeploymentService {
	return &DeploymentService{
		deploymentRepo:      deploymentRepo,
		provider:            provider,
		configurator:        configurator,
		taskManager:         taskManager,
		DropletPollInterval: dropletPollInterval,
		DropletReadyTimeout: dropletReadyTimeout,
		HostingWindow:       hostingWindow,
	}
}

// CreateDeployment persists a pending record and hands the provisioning
// workflow to the task manager. The raw API key goes into the workflow
// closure only; the store sees the masked form.
func (s *DeploymentService) CreateDeployment(request dtos.ProvisionRequest) (*entities.DeploymentEntity, error) {
	request.Normalize()

	deploymentID := uuid.New()
	expiresAt := time.Now().UTC().Add(s.HostingWindow)

	config, err := json.Marshal(dtos.ProvisionConfig{
		Region:        request.Region,
		WalletAddress: request.WalletAddress,
		UserEmail:     request.UserEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	deployment := &entities.DeploymentEntity{
		ID:               deploymentID,
		Status:           entities.DeploymentStatusPending,
		APIKeyMasked:     utils.MaskAPIKey(request.AnthropicAPIKey),
		WalletAddress:    optional(request.WalletAddress),
		PaymentSignature: optional(request.PaymentSignature),
		UserEmail:        optional(request.UserEmail),
		Region:           request.Region,
		Config:           datatypes.JSON(config),
		ExpiresAt:        &expiresAt,
	}

	if err := s.deploymentRepo.CreateDeployment(deployment); err != nil {
		logger.Error("Failed to create deployment record", zap.Error(err))
		return nil, err
	}

	logger.Info("Deployment created", zap.String("deploymentId", deploymentID.String()))

	apiKey := request.AnthropicAPIKey
	region := request.Region
	s.taskManager.Submit(deploymentID.String(), func() {
		s.handleProvision(context.Background(), deploymentID, apiKey, region)
	})

	return deployment, nil
}

func (s *DeploymentService) GetDeployment(id string) (*entities.DeploymentEntity, error) {
	return s.deploymentRepo.GetDeploymentByID(id)
}

func (s *DeploymentService) ListDeployments(wallet string) ([]*entities.DeploymentEntity, error) {
	if wallet != "" {
		return s.deploymentRepo.GetDeploymentsByWallet(wallet)
	}
	return s.deploymentRepo.GetAllDeployments()
}

// DeleteDeployment destroys the backing droplet best-effort and removes
// the record. A destroy failure is logged and the record still goes.
func (s *DeploymentService) DeleteDeployment(ctx context.Context, id string) error {
	deployment, err := s.deploymentRepo.GetDeploymentByID(id)
	if err != nil {
		return err
	}

	if deployment.DropletID != nil {
		if err := s.provider.DestroyDroplet(ctx, *deployment.DropletID); err != nil {
			logger.Error("Failed to destroy droplet",
				zap.String("deploymentId", id),
				zap.Int64("dropletId", *deployment.DropletID),
				zap.Error(err))
		} else {
			logger.Info("Destroyed droplet",
				zap.String("deploymentId", id),
				zap.Int64("dropletId", *deployment.DropletID))
		}
	}

	return s.deploymentRepo.DeleteDeployment(id)
}

// RenewDeployment extends the hosting window by seven days, anchored to
// the current expiry while it is still in the future and to now once it
// has passed. The caller's wallet must match the stored owner; payment
// verification itself happens upstream.
func (s *DeploymentService) RenewDeployment(id, wallet, paymentSignature string) (time.Time, error) {
	deployment, err := s.deploymentRepo.GetDeploymentByID(id)
	if err != nil {
		return time.Time{}, err
	}

	if deployment.WalletAddress == nil || *deployment.WalletAddress != wallet {
		return time.Time{}, entities.ErrOwnerMismatch
	}

	now := time.Now().UTC()
	anchor := now
	if deployment.ExpiresAt != nil && deployment.ExpiresAt.After(now) {
		anchor = *deployment.ExpiresAt
	}
	newExpiry := anchor.Add(s.HostingWindow)

	err = s.deploymentRepo.UpdateFields(id, map[string]interface{}{
		"expires_at":        newExpiry,
		"payment_signature": paymentSignature,
		"error_message":     nil,
	})
	if err != nil {
		return time.Time{}, err
	}

	logger.Info("Deployment renewed",
		zap.String("deploymentId", id),
		zap.Time("expiresAt", newExpiry))

	return newExpiry, nil
}

// handleProvision is the workflow boundary: any error below it becomes
// a persisted failed status and never escapes the goroutine.
func (s *DeploymentService) handleProvision(ctx context.Context, deploymentID uuid.UUID, apiKey, region string) {
	logger.Info("Starting provisioning", zap.String("deploymentId", deploymentID.String()))

	if err := s.provision(ctx, deploymentID, apiKey, region); err != nil {
		logger.Error("Provisioning failed",
			zap.String("deploymentId", deploymentID.String()),
			zap.Error(err))

		updateErr := s.deploymentRepo.UpdateFields(deploymentID.String(), map[string]interface{}{
			"status":        entities.DeploymentStatusFailed,
			"error_message": err.Error(),
		})
		if updateErr != nil {
			logger.Error("Failed to persist failed status",
				zap.String("deploymentId", deploymentID.String()),
				zap.Error(updateErr))
		}
		return
	}

	logger.Info("Deployment completed successfully", zap.String("deploymentId", deploymentID.String()))
}

func (s *DeploymentService) provision(ctx context.Context, deploymentID uuid.UUID, apiKey, region string) error {
	id := deploymentID.String()

	if err := s.deploymentRepo.UpdateStatus(id, entities.DeploymentStatusCreatingDroplet); err != nil {
		return err
	}

	sshKeyID, err := s.provider.ResolveSSHKey(ctx)
	if err != nil {
		return err
	}

	logger.Info("Creating droplet", zap.String("deploymentId", id))
	dropletID, err := s.provider.CreateDroplet(
		ctx,
		utils.GetDropletName(deploymentID),
		region,
		sshKeyID,
		[]string{utils.GetDeploymentTag(deploymentID), "autoclawd", "platform-managed"},
	)
	if err != nil {
		return err
	}

	logger.Info("Droplet created",
		zap.String("deploymentId", id),
		zap.Int64("dropletId", dropletID))

	err = s.deploymentRepo.UpdateFields(id, map[string]interface{}{
		"droplet_id": dropletID,
		"status":     entities.DeploymentStatusWaitingForDroplet,
	})
	if err != nil {
		return err
	}

	ipAddress, err := s.waitForDroplet(ctx, dropletID)
	if err != nil {
		return err
	}

	err = s.deploymentRepo.UpdateFields(id, map[string]interface{}{
		"ip_address": ipAddress,
		"status":     entities.DeploymentStatusConfiguring,
	})
	if err != nil {
		return err
	}

	logger.Info("Droplet ready, configuring API key",
		zap.String("deploymentId", id),
		zap.String("ip", ipAddress))

	if err := s.configurator.ConfigureAPIKey(ctx, ipAddress, apiKey); err != nil {
		return err
	}

	dashboardURL, err := s.configurator.FetchDashboardURL(ctx, ipAddress)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.deploymentRepo.UpdateFields(id, map[string]interface{}{
		"dashboard_url": dashboardURL,
		"status":        entities.DeploymentStatusReady,
		"completed_at":  now,
		"error_message": nil,
	})
	if err != nil {
		return err
	}

	logger.Info("Dashboard URL ready",
		zap.String("deploymentId", id),
		zap.String("dashboardUrl", dashboardURL))
	return nil
}

// waitForDroplet polls until the droplet reports active with a public
// IP or the readiness deadline elapses. The droplet is never torn down
// on timeout; the id stays on the record for manual cleanup.
func (s *DeploymentService) waitForDroplet(ctx context.Context, dropletID int64) (string, error) {
	deadline := time.Now().Add(s.DropletReadyTimeout)

	for time.Now().Before(deadline) {
		droplet, err := s.provider.GetDroplet(ctx, dropletID)
		if err != nil {
			return "", err
		}

		if droplet.Active() {
			logger.Info("Droplet is ready",
				zap.Int64("dropletId", dropletID),
				zap.String("ip", droplet.IPAddress))
			return droplet.IPAddress, nil
		}

		logger.Info("Droplet not ready, waiting",
			zap.Int64("dropletId", dropletID),
			zap.String("status", droplet.Status))

		if err := sleepCtx(ctx, s.DropletPollInterval); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("droplet %d did not become ready within %s", dropletID, s.DropletReadyTimeout)
}

// sleepCtx waits for the duration or the context, whichever ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
