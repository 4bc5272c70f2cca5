package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// MaskAPIKey keeps enough of the key prefix to recognize it and drops
// the rest. Only the masked form is ever persisted.
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10] + "..."
}

// GetDropletName returns the provider-side name for a deployment's droplet.
func GetDropletName(deploymentID uuid.UUID) string {
	return fmt.Sprintf("autoclawd-%s", deploymentID.String())
}

// GetDeploymentTag returns the provider tag tying a droplet back to its
// deployment record.
func GetDeploymentTag(deploymentID uuid.UUID) string {
	return fmt.Sprintf("deployment:%s", deploymentID.String())
}
