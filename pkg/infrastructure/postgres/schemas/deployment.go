package schemas

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
)

type Deployment struct {
	ID               uuid.UUID                 `gorm:"type:uuid;primaryKey;column:id"`
	Status           entities.DeploymentStatus `gorm:"column:status;not null;index"`
	APIKeyMasked     string                    `gorm:"column:api_key_masked"`
	WalletAddress    *string                   `gorm:"column:wallet_address;index"`
	PaymentSignature *string                   `gorm:"column:payment_signature"`
	UserEmail        *string                   `gorm:"column:user_email"`
	Region           string                    `gorm:"column:region;not null"`
	Config           datatypes.JSON            `gorm:"column:config;type:jsonb"`
	DropletID        *int64                    `gorm:"column:droplet_id"`
	IPAddress        *string                   `gorm:"column:ip_address"`
	DashboardURL     *string                   `gorm:"column:dashboard_url"`
	ErrorMessage     *string                   `gorm:"column:error_message;type:text"`
	ExpiresAt        *time.Time                `gorm:"column:expires_at;index"`
	CompletedAt      *time.Time                `gorm:"column:completed_at"`
	CreatedAt        time.Time                 `gorm:"autoCreateTime;column:created_at"`
	UpdatedAt        time.Time                 `gorm:"autoUpdateTime;column:updated_at"`
}

func (Deployment) TableName() string {
	return "deployments"
}
