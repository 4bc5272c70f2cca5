package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
)

// ExpiryService sweeps ready deployments whose hosting window has
// passed, destroys their droplets best-effort, and marks the records
// destroyed. Records are never deleted by the sweep.
type ExpiryService struct {
	deploymentRepo DeploymentRepository
	provider       DropletProvider

	SweepInterval time.Duration
}

func NewExpiryService(deploymentRepo DeploymentRepository, provider DropletProvider) *ExpiryService {
	return &ExpiryService{
		deploymentRepo: deploymentRepo,
		provider:       provider,
		SweepInterval:  time.Hour,
	}
}

// Run loops for the process lifetime. A failed sweep is logged and the
// next period runs as usual; only context cancellation stops the loop.
func (s *ExpiryService) Run(ctx context.Context) {
	logger.Info("Started expired deployment checker")

	for {
		if err := s.Sweep(ctx); err != nil {
			logger.Error("Expiry sweep failed", zap.Error(err))
		}
		if err := sleepCtx(ctx, s.SweepInterval); err != nil {
			logger.Info("Expired deployment checker stopped")
			return
		}
	}
}

// Sweep handles one reconciliation cycle. The record transitions to
// destroyed whether or not the droplet destroy succeeded: a leaked
// droplet is operator-recoverable, a stuck record is not.
func (s *ExpiryService) Sweep(ctx context.Context) error {
	expired, err := s.deploymentRepo.GetExpiredDeployments(time.Now().UTC())
	if err != nil {
		return err
	}

	for _, deployment := range expired {
		logger.Info("Deployment has expired, destroying droplet",
			zap.String("deploymentId", deployment.ID.String()))

		if deployment.DropletID != nil {
			if err := s.provider.DestroyDroplet(ctx, *deployment.DropletID); err != nil {
				logger.Error("Failed to destroy expired droplet",
					zap.String("deploymentId", deployment.ID.String()),
					zap.Int64("dropletId", *deployment.DropletID),
					zap.Error(err))
			} else {
				logger.Info("Destroyed expired droplet",
					zap.Int64("dropletId", *deployment.DropletID))
			}
		}

		if err := s.deploymentRepo.UpdateStatus(deployment.ID.String(), entities.DeploymentStatusDestroyed); err != nil {
			logger.Error("Failed to mark deployment destroyed",
				zap.String("deploymentId", deployment.ID.String()),
				zap.Error(err))
		}
	}

	return nil
}
