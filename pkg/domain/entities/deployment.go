package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrDeploymentNotFound = errors.New("deployment not found")
	ErrOwnerMismatch      = errors.New("wallet address does not match deployment owner")
)

type Task func()

// DeploymentEntity is the canonical record for one provisioned
// environment. DropletID, IPAddress and DashboardURL are populated in
// that order as the workflow advances; a later field is never set
// before an earlier one.
type DeploymentEntity struct {
	ID               uuid.UUID        `json:"deployment_id"`
	Status           DeploymentStatus `json:"status"`
	APIKeyMasked     string           `json:"api_key_masked"`
	WalletAddress    *string          `json:"wallet_address,omitempty"`
	PaymentSignature *string          `json:"payment_signature,omitempty"`
	UserEmail        *string          `json:"user_email,omitempty"`
	Region           string           `json:"region"`
	Config           datatypes.JSON   `json:"config,omitempty"`
	DropletID        *int64           `json:"droplet_id,omitempty"`
	IPAddress        *string          `json:"ip_address,omitempty"`
	DashboardURL     *string          `json:"dashboard_url,omitempty"`
	ErrorMessage     *string          `json:"error_message,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
