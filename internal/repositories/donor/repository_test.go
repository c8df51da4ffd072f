package donor_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	donorrepo "github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/internal/repositories/donor"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/database"
	"github.com/itaisigler-a11y/school-in-the-square-fundraising-sub002/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database-backed test in short mode")
	}

	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "fundraising"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func newTestDonor(tenantID string) *models.Donor {
	return &models.Donor{
		TenantID:  tenantID,
		FirstName: "Maria",
		LastName:  "Lopez",
		Email:     "Maria.Lopez@Example.com",
		Phone:     "(212) 555-0188",
		City:      "New York",
		Zip:       "10027",
		DonorType: models.DonorTypeParent,
	}
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := donorrepo.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()
	tenantID := uuid.New().String()

	created, err := repo.Create(ctx, newTestDonor(tenantID))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := repo.Get(ctx, tenantID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria", got.FirstName)
	assert.Equal(t, "Maria.Lopez@Example.com", got.Email, "stored email keeps its original casing")
}

func TestRepository_GetWrongTenant(t *testing.T) {
	repo := donorrepo.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()
	tenantID := uuid.New().String()

	created, err := repo.Create(ctx, newTestDonor(tenantID))
	require.NoError(t, err)

	_, err = repo.Get(ctx, uuid.New().String(), created.ID)
	assertNotFound(t, err)
}

func TestRepository_FindCandidates(t *testing.T) {
	repo := donorrepo.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()
	tenantID := uuid.New().String()

	seeded, err := repo.Create(ctx, newTestDonor(tenantID))
	require.NoError(t, err)

	t.Run("matches on normalized email", func(t *testing.T) {
		probe := &models.Donor{FirstName: "M", LastName: "L", Email: "  MARIA.LOPEZ@example.COM "}
		candidates, err := repo.FindCandidates(ctx, tenantID, probe, 100)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, seeded.ID, candidates[0].ID)
	})

	t.Run("matches on phone digits", func(t *testing.T) {
		probe := &models.Donor{FirstName: "M", LastName: "X", Phone: "212.555.0188"}
		candidates, err := repo.FindCandidates(ctx, tenantID, probe, 100)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
	})

	t.Run("matches on last name prefix", func(t *testing.T) {
		probe := &models.Donor{FirstName: "Ana", LastName: "Lopes"}
		candidates, err := repo.FindCandidates(ctx, tenantID, probe, 100)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
	})

	t.Run("no signal yields no candidates", func(t *testing.T) {
		probe := &models.Donor{FirstName: "A", LastName: "Wu"}
		candidates, err := repo.FindCandidates(ctx, tenantID, probe, 100)
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestRepository_SoftDelete(t *testing.T) {
	repo := donorrepo.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()
	tenantID := uuid.New().String()

	created, err := repo.Create(ctx, newTestDonor(tenantID))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, tenantID, created.ID))

	_, err = repo.Get(ctx, tenantID, created.ID)
	assertNotFound(t, err)

	err = repo.Delete(ctx, tenantID, created.ID)
	assertNotFound(t, err)
}

func TestRepository_ListAndScan(t *testing.T) {
	repo := donorrepo.NewRepository(getTestDB(t), getTestLogger())
	ctx := context.Background()
	tenantID := uuid.New().String()

	names := []string{"Adams", "Baker", "Chen"}
	for _, last := range names {
		d := newTestDonor(tenantID)
		d.LastName = last
		d.Email = last + "@example.com"
		d.Phone = ""
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	donors, total, err := repo.List(ctx, tenantID, donorrepo.ListFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, donors, 2)
	assert.Equal(t, "Adams", donors[0].LastName)

	// ScanBatch pages by id, so only the batch size is predictable here.
	batch, err := repo.ScanBatch(ctx, tenantID, 2, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}
