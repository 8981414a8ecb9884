package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient starts a disposable Postgres container, runs migrations
// against it, and returns a ready Client (avoiding an import cycle with
// test/database).
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := Config{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestNewClient_ConnectionPoolAndHealth(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	health, err := Health(ctx, client.Pool)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestNewClient_SchemaCreated(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Pool.Exec(ctx,
		`INSERT INTO covenants (id, user_id, intent, constraints_json, state) VALUES ($1, $2, $3, $4, $5)`,
		"cov-1", "user-1", "do the thing", `{"max_cost_usd":1,"max_latency_ms":1000,"required_quality":"balanced"}`, "draft")
	require.NoError(t, err)

	var count int
	err = client.Pool.QueryRow(ctx, `SELECT count(*) FROM covenants WHERE id = $1`, "cov-1").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFullTextSearchOnIntent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Pool.Exec(ctx,
		`INSERT INTO covenants (id, user_id, intent, constraints_json, state) VALUES ($1, $2, $3, $4, $5)`,
		"cov-1", "user-1", "critical error in production cluster with pod failures", `{}`, "draft")
	require.NoError(t, err)
	_, err = client.Pool.Exec(ctx,
		`INSERT INTO covenants (id, user_id, intent, constraints_json, state) VALUES ($1, $2, $3, $4, $5)`,
		"cov-2", "user-1", "warning high memory usage detected", `{}`, "draft")
	require.NoError(t, err)

	rows, err := client.Pool.Query(ctx,
		`SELECT id FROM covenants WHERE to_tsvector('english', intent) @@ to_tsquery('english', $1)`,
		"error & production")
	require.NoError(t, err)
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"cov-1"}, ids)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 0, MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
