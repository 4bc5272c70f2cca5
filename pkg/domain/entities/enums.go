package entities

type DeploymentStatus string

const (
	DeploymentStatusPending           DeploymentStatus = "pending"
	DeploymentStatusCreatingDroplet   DeploymentStatus = "creating_droplet"
	DeploymentStatusWaitingForDroplet DeploymentStatus = "waiting_for_droplet"
	DeploymentStatusConfiguring       DeploymentStatus = "configuring"
	DeploymentStatusReady             DeploymentStatus = "ready"
	DeploymentStatusFailed            DeploymentStatus = "failed"
	DeploymentStatusDestroyed         DeploymentStatus = "destroyed"
)

// Terminal reports whether no workflow or sweep will touch the record again.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentStatusFailed || s == DeploymentStatusDestroyed
}
