package repositories

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/postgres/schemas"
)

type DeploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) *DeploymentRepository {
	return &DeploymentRepository{db: db}
}

func (r *DeploymentRepository) CreateDeployment(deployment *entities.DeploymentEntity) error {
	return r.db.Create(toSchema(deployment)).Error
}

func (r *DeploymentRepository) GetDeploymentByID(id string) (*entities.DeploymentEntity, error) {
	var deployment schemas.Deployment
	err := r.db.Where("id = ?", id).First(&deployment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entities.ErrDeploymentNotFound
		}
		return nil, err
	}
	return toEntity(&deployment), nil
}

func (r *DeploymentRepository) GetAllDeployments() ([]*entities.DeploymentEntity, error) {
	var deployments []schemas.Deployment
	err := r.db.Order("created_at DESC").Find(&deployments).Error
	if err != nil {
		return nil, err
	}
	return toEntities(deployments), nil
}

func (r *DeploymentRepository) GetDeploymentsByWallet(wallet string) ([]*entities.DeploymentEntity, error) {
	var deployments []schemas.Deployment
	err := r.db.Where("wallet_address = ?", wallet).Order("created_at DESC").Find(&deployments).Error
	if err != nil {
		return nil, err
	}
	return toEntities(deployments), nil
}

// GetExpiredDeployments returns ready deployments whose expiry is in the
// past. Failed and destroyed records are left alone: their droplets are
// either already gone or kept for manual inspection.
func (r *DeploymentRepository) GetExpiredDeployments(now time.Time) ([]*entities.DeploymentEntity, error) {
	var deployments []schemas.Deployment
	err := r.db.
		Where("expires_at < ? AND status = ?", now, entities.DeploymentStatusReady).
		Find(&deployments).Error
	if err != nil {
		return nil, err
	}
	return toEntities(deployments), nil
}

func (r *DeploymentRepository) UpdateStatus(id string, status entities.DeploymentStatus) error {
	return r.updateFields(id, map[string]interface{}{"status": status})
}

// UpdateFields applies a partial update and bumps updated_at. Keys are
// column names from the deployments schema.
func (r *DeploymentRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.updateFields(id, fields)
}

func (r *DeploymentRepository) updateFields(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	result := r.db.Model(&schemas.Deployment{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entities.ErrDeploymentNotFound
	}
	return nil
}

func (r *DeploymentRepository) DeleteDeployment(id string) error {
	result := r.db.Where("id = ?", id).Delete(&schemas.Deployment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entities.ErrDeploymentNotFound
	}
	return nil
}

func toSchema(deployment *entities.DeploymentEntity) *schemas.Deployment {
	return &schemas.Deployment{
		ID:               deployment.ID,
		Status:           deployment.Status,
		APIKeyMasked:     deployment.APIKeyMasked,
		WalletAddress:    deployment.WalletAddress,
		PaymentSignature: deployment.PaymentSignature,
		UserEmail:        deployment.UserEmail,
		Region:           deployment.Region,
		Config:           deployment.Config,
		DropletID:        deployment.DropletID,
		IPAddress:        deployment.IPAddress,
		DashboardURL:     deployment.DashboardURL,
		ErrorMessage:     deployment.ErrorMessage,
		ExpiresAt:        deployment.ExpiresAt,
		CompletedAt:      deployment.CompletedAt,
	}
}

func toEntity(deployment *schemas.Deployment) *entities.DeploymentEntity {
	return &entities.DeploymentEntity{
		ID:               deployment.ID,
		Status:           deployment.Status,
		APIKeyMasked:     deployment.APIKeyMasked,
		WalletAddress:    deployment.WalletAddress,
		PaymentSignature: deployment.PaymentSignature,
		UserEmail:        deployment.UserEmail,
		Region:           deployment.Region,
		Config:           deployment.Config,
		DropletID:        deployment.DropletID,
		IPAddress:        deployment.IPAddress,
		DashboardURL:     deployment.DashboardURL,
		ErrorMessage:     deployment.ErrorMessage,
		ExpiresAt:        deployment.ExpiresAt,
		CompletedAt:      deployment.CompletedAt,
		CreatedAt:        deployment.CreatedAt,
		UpdatedAt:        deployment.UpdatedAt,
	}
}

func toEntities(deployments []schemas.Deployment) []*entities.DeploymentEntity {
	result := make([]*entities.DeploymentEntity, 0, len(deployments))
	for i := range deployments {
		result = append(result, toEntity(&deployments[i]))
	}
	return result
}
