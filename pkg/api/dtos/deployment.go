package dtos

import (
	"time"

	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
)

const defaultRegion = "nyc3"

type ProvisionRequest struct {
	AnthropicAPIKey  string `json:"anthropic_api_key" binding:"required,min=20"`
	WalletAddress    string `json:"wallet_address"`
	PaymentSignature string `json:"payment_signature"`
	UserEmail        string `json:"user_email"`
	Region           string `json:"region"`
}

func (r *ProvisionRequest) Normalize() {
	if r.Region == "" {
		r.Region = defaultRegion
	}
}

// ProvisionConfig is the sanitized request snapshot persisted alongside
// the record. The API key never appears here.
type ProvisionConfig struct {
	Region        string `json:"region"`
	WalletAddress string `json:"wallet_address,omitempty"`
	UserEmail     string `json:"user_email,omitempty"`
}

type ProvisionResponse struct {
	DeploymentID string `json:"deployment_id"`
	Status       string `json:"status"`
	Message      string `json:"message"`
}

type RenewRequest struct {
	WalletAddress    string `json:"wallet_address" binding:"required"`
	PaymentSignature string `json:"payment_signature" binding:"required"`
}

type RenewResponse struct {
	Message      string    `json:"message"`
	DeploymentID string    `json:"deployment_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type ListDeploymentsResponse struct {
	Total       int                          `json:"total"`
	Deployments []*entities.DeploymentEntity `json:"deployments"`
}
