package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/digitalocean"
)

// fakeRepo keeps records in memory and tracks the status transitions
// each deployment went through.
type fakeRepo struct {
	mu            sync.Mutex
	records       map[string]*entities.DeploymentEntity
	statusHistory map[string][]entities.DeploymentStatus
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		records:       make(map[string]*entities.DeploymentEntity),
		statusHistory: make(map[string][]entities.DeploymentStatus),
	}
}

func (r *fakeRepo) CreateDeployment(deployment *entities.DeploymentEntity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[deployment.ID.String()]; exists {
		return fmt.Errorf("duplicate deployment id %s", deployment.ID)
	}
	copied := *deployment
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	r.records[deployment.ID.String()] = &copied
	return nil
}

func (r *fakeRepo) GetDeploymentByID(id string) (*entities.DeploymentEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, entities.ErrDeploymentNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *fakeRepo) GetAllDeployments() ([]*entities.DeploymentEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*entities.DeploymentEntity, 0, len(r.records))
	for _, record := range r.records {
		copied := *record
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeRepo) GetDeploymentsByWallet(wallet string) ([]*entities.DeploymentEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entities.DeploymentEntity
	for _, record := range r.records {
		if record.WalletAddress != nil && *record.WalletAddress == wallet {
			copied := *record
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeRepo) GetExpiredDeployments(now time.Time) ([]*entities.DeploymentEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*entities.DeploymentEntity
	for _, record := range r.records {
		if record.Status == entities.DeploymentStatusReady &&
			record.ExpiresAt != nil && record.ExpiresAt.Before(now) {
			copied := *record
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeRepo) UpdateStatus(id string, status entities.DeploymentStatus) error {
	return r.UpdateFields(id, map[string]interface{}{"status": status})
}

func (r *fakeRepo) UpdateFields(id string, fields map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return entities.ErrDeploymentNotFound
	}
	for column, value := range fields {
		switch column {
		case "status":
			status := value.(entities.DeploymentStatus)
			record.Status = status
			r.statusHistory[id] = append(r.statusHistory[id], status)
		case "droplet_id":
			dropletID := value.(int64)
			record.DropletID = &dropletID
		case "ip_address":
			ip := value.(string)
			record.IPAddress = &ip
		case "dashboard_url":
			url := value.(string)
			record.DashboardURL = &url
		case "error_message":
			if value == nil {
				record.ErrorMessage = nil
			} else {
				msg := value.(string)
				record.ErrorMessage = &msg
			}
		case "expires_at":
			expires := value.(time.Time)
			record.ExpiresAt = &expires
		case "completed_at":
			completed := value.(time.Time)
			record.CompletedAt = &completed
		case "payment_signature":
			signature := value.(string)
			record.PaymentSignature = &signature
		}
	}
	record.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeRepo) DeleteDeployment(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return entities.ErrDeploymentNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *fakeRepo) history(id string) []entities.DeploymentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entities.DeploymentStatus(nil), r.statusHistory[id]...)
}

// fakeProvider simulates the droplet lifecycle: the droplet reports its
// configured status until activeAfter polls have happened, then active.
type fakeProvider struct {
	mu           sync.Mutex
	nextID       int64
	ip           string
	activeAfter  int
	neverActive  bool
	polls        int
	createErr    error
	destroyErr   error
	destroyCalls []int64
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{nextID: 4242, ip: "203.0.113.10"}
}

func (p *fakeProvider) ResolveSSHKey(_ context.Context) (int, error) {
	return 111, nil
}

func (p *fakeProvider) CreateDroplet(_ context.Context, _, _ string, _ int, _ []string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return 0, p.createErr
	}
	p.nextID++
	return p.nextID, nil
}

func (p *fakeProvider) GetDroplet(_ context.Context, id int64) (*digitalocean.Droplet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if p.neverActive || p.polls <= p.activeAfter {
		return &digitalocean.Droplet{ID: id, Status: "new"}, nil
	}
	return &digitalocean.Droplet{ID: id, Status: "active", IPAddress: p.ip}, nil
}

func (p *fakeProvider) DestroyDroplet(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroyCalls = append(p.destroyCalls, id)
	return p.destroyErr
}

func (p *fakeProvider) destroyed() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int64(nil), p.destroyCalls...)
}

type fakeConfigurator struct {
	configureErr error
	dashboardURL string
	configured   []string
}

func (c *fakeConfigurator) ConfigureAPIKey(_ context.Context, ip, _ string) error {
	if c.configureErr != nil {
		return c.configureErr
	}
	c.configured = append(c.configured, ip)
	return nil
}

func (c *fakeConfigurator) FetchDashboardURL(_ context.Context, ip string) (string, error) {
	if c.dashboardURL != "" {
		return c.dashboardURL, nil
	}
	return "https://" + ip, nil
}

// syncTaskManager runs tasks inline so workflow tests are deterministic.
type syncTaskManager struct{}

func (syncTaskManager) Submit(_ string, task entities.Task) bool {
	task()
	return true
}

// heldTaskManager records tasks without running them.
type heldTaskManager struct {
	tasks []entities.Task
}

func (tm *heldTaskManager) Submit(_ string, task entities.Task) bool {
	tm.tasks = append(tm.tasks, task)
	return true
}
