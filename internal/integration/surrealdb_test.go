//go:build integration

// Package integration runs the client against a real SurrealDB server in a
// container. Run with: go test -tags integration ./internal/integration/
package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

const defaultImage = "surrealdb/surrealdb:v2.0.4"

// startSurrealDB returns the host:port of a fresh in-memory server.
func startSurrealDB(t *testing.T) string {
	t.Helper()
	image := os.Getenv("SURREALDB_IMAGE")
	if image == "" {
		image = defaultImage
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"start", "--user", "root", "--pass", "root", "memory"},
		WaitingFor:   wait.ForHTTP("/health").WithPort("8000/tcp").WithStartupTimeout(120 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8000/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestAgainstSurrealDB(t *testing.T) {
	addr := startSurrealDB(t)

	for _, scheme := range []string{"ws", "http"} {
		t.Run(scheme, func(t *testing.T) {
			ctx := context.Background()
			db, err := surrealdb.Open(ctx, &surrealdb.Config{
				Endpoint:  scheme + "://" + addr,
				Namespace: "test",
				Database:  scheme,
				Auth:      &surrealdb.Auth{Username: "root", Password: "root"},
				Logger:    logger.Nop(),
			})
			require.NoError(t, err)
			defer db.Close(ctx)

			_, ok := db.TokenExpiry()
			assert.True(t, ok)

			v, err := db.Version(ctx)
			require.NoError(t, err)
			assert.NotEmpty(t, v)

			t.Run("arithmetic", func(t *testing.T) {
				values := []float64{1000, 0, -1000}
				for _, a := range values {
					for _, b := range values {
						resp, err := db.Query(ctx, "SELECT * FROM <float>($val1 + $val2)", map[string]any{"val1": a, "val2": b})
						require.NoError(t, err)
						got, err := surrealdb.DecodeFirst[float64](resp)
						require.NoError(t, err)
						assert.InDelta(t, a+b, got, 0.1)

						resp, err = db.Query(ctx, "SELECT * FROM <float>($val1 / $val2)", map[string]any{"val1": a, "val2": b})
						require.NoError(t, err)
						o, err := resp.Outcome(0)
						require.NoError(t, err)
						if b == 0 {
							// Division by zero is the server's call: an error or a value.
							continue
						}
						require.NoError(t, o.Err())
						got, err = surrealdb.DecodeFirst[float64](resp)
						require.NoError(t, err)
						assert.InDelta(t, a/b, got, 0.1)
					}
				}
			})

			t.Run("records", func(t *testing.T) {
				type person struct {
					ID   models.RecordID `json:"id"`
					Name string          `json:"name"`
				}
				tobie := models.NewRecordID("person", "tobie")

				_, err := db.Create(ctx, tobie, map[string]any{"name": "Tobie"})
				require.NoError(t, err)

				o, err := db.Change(ctx, tobie, map[string]any{"name": "Tobie M"})
				require.NoError(t, err)
				people, err := surrealdb.DecodeAll[person](o)
				require.NoError(t, err)
				require.Len(t, people, 1)
				assert.Equal(t, "Tobie M", people[0].Name)
				assert.True(t, tobie.Equal(people[0].ID))

				_, err = db.Create(ctx, tobie, map[string]any{"name": "again"})
				assert.ErrorIs(t, err, surrealdb.ErrStatement)

				_, err = db.Delete(ctx, tobie)
				require.NoError(t, err)
				o, err = db.Select(ctx, tobie)
				require.NoError(t, err)
				values, err := o.Values()
				require.NoError(t, err)
				assert.Empty(t, values)
			})

			t.Run("wrong credentials", func(t *testing.T) {
				_, err := surrealdb.Open(ctx, &surrealdb.Config{
					Endpoint: scheme + "://" + addr,
					Auth:     &surrealdb.Auth{Username: "root", Password: "wrong"},
					Logger:   logger.Nop(),
				})
				assert.ErrorIs(t, err, surrealdb.ErrAuth)
			})
		})
	}
}
