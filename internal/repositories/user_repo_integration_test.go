//go:build integration

package repositories_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/adminguard/internal/database"
	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/internal/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// setupTestDatabase starts a PostgreSQL container and applies the embedded migrations
func setupTestDatabase(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("adminguard"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.NewFromPool(pool, slog.Default())
	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestUserRepository_CreateAndGetByEmail(t *testing.T) {
	db := setupTestDatabase(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("x"), bcrypt.MinCost)
	require.NoError(t, err)

	created, err := repo.Create(ctx, &models.User{
		Email:        "Admin@Bank.Test",
		Name:         "Admin",
		PasswordHash: string(hash),
		IsAdmin:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@bank.test", created.Email)

	got, err := repo.GetByEmail(ctx, "  ADMIN@bank.test ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, got.IsAdmin)
	assert.Equal(t, "Admin", got.Name)
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db := setupTestDatabase(t)
	repo := repositories.NewUserRepository(db)

	_, err := repo.GetByEmail(context.Background(), "nobody@bank.test")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserRepository_Create_DuplicateEmailConflicts(t *testing.T) {
	db := setupTestDatabase(t)
	repo := repositories.NewUserRepository(db)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.User{Email: "ops@bank.test", PasswordHash: "h"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &models.User{Email: "OPS@bank.test", PasswordHash: "h"})
	assert.ErrorIs(t, err, models.ErrConflict)
}
