package digitalocean

import (
	"context"
	"fmt"

	"github.com/digitalocean/godo"
	"go.uber.org/zap"

	"github.com/autoclaw/autoclaw-backend/internal/logger"
)

const (
	dropletSize  = "s-2vcpu-4gb"
	dropletImage = "moltbot"
)

// The droplet boots from a marketplace image; the API key is injected
// later over SSH. Cloud-init only drops a readiness marker so no secret
// material ever travels through unauthenticated boot metadata.
const cloudInitScript = `#cloud-config
package_update: false

runcmd:
  - echo "Droplet ready for Auto Clawd configuration" > /var/log/autoclawd_ready.log
`

// Droplet is the provider-side view of an instance the workflow polls on.
type Droplet struct {
	ID        int64
	Status    string
	IPAddress string
}

func (d *Droplet) Active() bool {
	return d.Status == "active" && d.IPAddress != ""
}

type Client struct {
	do       *godo.Client
	sshKeyID int
}

// NewClient builds a DigitalOcean gateway. sshKeyID may be zero, in
// which case the first key on the account is used.
func NewClient(token string, sshKeyID int) *Client {
	return &Client{
		do:       godo.NewFromToken(token),
		sshKeyID: sshKeyID,
	}
}

// ResolveSSHKey returns the configured SSH key ID, falling back to the
// first key registered on the account.
func (c *Client) ResolveSSHKey(ctx context.Context) (int, error) {
	if c.sshKeyID != 0 {
		return c.sshKeyID, nil
	}

	keys, _, err := c.do.Keys.List(ctx, &godo.ListOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to list SSH keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("no SSH keys configured in DigitalOcean account")
	}

	logger.Info("Using existing SSH key", zap.Int("keyId", keys[0].ID))
	return keys[0].ID, nil
}

func (c *Client) CreateDroplet(ctx context.Context, name, region string, sshKeyID int, tags []string) (int64, error) {
	droplet, _, err := c.do.Droplets.Create(ctx, &godo.DropletCreateRequest{
		Name:   name,
		Region: region,
		Size:   dropletSize,
		Image:  godo.DropletCreateImage{Slug: dropletImage},
		SSHKeys: []godo.DropletCreateSSHKey{
			{ID: sshKeyID},
		},
		UserData: cloudInitScript,
		Tags:     tags,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create droplet: %w", err)
	}
	return int64(droplet.ID), nil
}

func (c *Client) GetDroplet(ctx context.Context, id int64) (*Droplet, error) {
	droplet, _, err := c.do.Droplets.Get(ctx, int(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get droplet %d: %w", id, err)
	}

	ip, err := droplet.PublicIPv4()
	if err != nil {
		ip = ""
	}

	return &Droplet{
		ID:        int64(droplet.ID),
		Status:    droplet.Status,
		IPAddress: ip,
	}, nil
}

func (c *Client) DestroyDroplet(ctx context.Context, id int64) error {
	_, err := c.do.Droplets.Delete(ctx, int(id))
	if err != nil {
		return fmt.Errorf("failed to destroy droplet %d: %w", id, err)
	}
	return nil
}
