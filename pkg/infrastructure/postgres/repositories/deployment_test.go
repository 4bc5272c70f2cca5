package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
	"github.com/autoclaw/autoclaw-backend/pkg/infrastructure/postgres/schemas"
)

func newTestRepo(t *testing.T) *DeploymentRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&schemas.Deployment{}))
	return NewDeploymentRepository(db)
}

func newDeployment(wallet string, status entities.DeploymentStatus, expiresAt *time.Time) *entities.DeploymentEntity {
	deployment := &entities.DeploymentEntity{
		ID:           uuid.New(),
		Status:       status,
		APIKeyMasked: "sk-ant-api...",
		Region:       "nyc3",
		ExpiresAt:    expiresAt,
	}
	if wallet != "" {
		deployment.WalletAddress = &wallet
	}
	return deployment
}

func TestCreateAndGetDeployment(t *testing.T) {
	repo := newTestRepo(t)

	expires := time.Now().UTC().Add(7 * 24 * time.Hour)
	deployment := newDeployment("wallet-a", entities.DeploymentStatusPending, &expires)
	require.NoError(t, repo.CreateDeployment(deployment))

	stored, err := repo.GetDeploymentByID(deployment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, deployment.ID, stored.ID)
	assert.Equal(t, entities.DeploymentStatusPending, stored.Status)
	assert.Equal(t, "sk-ant-api...", stored.APIKeyMasked)
	require.NotNil(t, stored.WalletAddress)
	assert.Equal(t, "wallet-a", *stored.WalletAddress)
	assert.Nil(t, stored.DropletID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestGetDeploymentNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetDeploymentByID(uuid.NewString())
	assert.ErrorIs(t, err, entities.ErrDeploymentNotFound)
}

func TestUpdateFieldsProgressesRecord(t *testing.T) {
	repo := newTestRepo(t)

	deployment := newDeployment("wallet-a", entities.DeploymentStatusPending, nil)
	require.NoError(t, repo.CreateDeployment(deployment))

	require.NoError(t, repo.UpdateFields(deployment.ID.String(), map[string]interface{}{
		"droplet_id": int64(555),
		"status":     entities.DeploymentStatusWaitingForDroplet,
	}))
	require.NoError(t, repo.UpdateFields(deployment.ID.String(), map[string]interface{}{
		"ip_address": "203.0.113.99",
		"status":     entities.DeploymentStatusConfiguring,
	}))

	stored, err := repo.GetDeploymentByID(deployment.ID.String())
	require.NoError(t, err)
	assert.Equal(t, entities.DeploymentStatusConfiguring, stored.Status)
	require.NotNil(t, stored.DropletID)
	assert.Equal(t, int64(555), *stored.DropletID)
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "203.0.113.99", *stored.IPAddress)
}

func TestUpdateFieldsMissingRecord(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.UpdateStatus(uuid.NewString(), entities.DeploymentStatusReady)
	assert.ErrorIs(t, err, entities.ErrDeploymentNotFound)
}

func TestGetDeploymentsByWallet(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.CreateDeployment(newDeployment("wallet-a", entities.DeploymentStatusReady, nil)))
	require.NoError(t, repo.CreateDeployment(newDeployment("wallet-a", entities.DeploymentStatusFailed, nil)))
	require.NoError(t, repo.CreateDeployment(newDeployment("wallet-b", entities.DeploymentStatusReady, nil)))
	require.NoError(t, repo.CreateDeployment(newDeployment("", entities.DeploymentStatusReady, nil)))

	all, err := repo.GetAllDeployments()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	filtered, err := repo.GetDeploymentsByWallet("wallet-a")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestGetExpiredDeployments(t *testing.T) {
	repo := newTestRepo(t)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	expiredReady := newDeployment("w", entities.DeploymentStatusReady, &past)
	require.NoError(t, repo.CreateDeployment(expiredReady))
	require.NoError(t, repo.CreateDeployment(newDeployment("w", entities.DeploymentStatusReady, &future)))
	require.NoError(t, repo.CreateDeployment(newDeployment("w", entities.DeploymentStatusFailed, &past)))
	require.NoError(t, repo.CreateDeployment(newDeployment("w", entities.DeploymentStatusDestroyed, &past)))
	require.NoError(t, repo.CreateDeployment(newDeployment("w", entities.DeploymentStatusPending, nil)))

	expired, err := repo.GetExpiredDeployments(now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, expiredReady.ID, expired[0].ID)
}

func TestDeleteDeployment(t *testing.T) {
	repo := newTestRepo(t)

	deployment := newDeployment("wallet-a", entities.DeploymentStatusReady, nil)
	require.NoError(t, repo.CreateDeployment(deployment))

	require.NoError(t, repo.DeleteDeployment(deployment.ID.String()))
	_, err := repo.GetDeploymentByID(deployment.ID.String())
	assert.ErrorIs(t, err, entities.ErrDeploymentNotFound)

	assert.ErrorIs(t, repo.DeleteDeployment(deployment.ID.String()), entities.ErrDeploymentNotFound)
}
