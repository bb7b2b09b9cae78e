package benchmark_test

import (
	"context"
	"fmt"
	"testing"

	surrealdb "github.com/surrealdb/surrealdriver"
	"github.com/surrealdb/surrealdriver/internal/fakesdb"
	"github.com/surrealdb/surrealdriver/pkg/logger"
	"github.com/surrealdb/surrealdriver/pkg/models"
)

// a simple user struct for testing
type testUser struct {
	ID       models.RecordID `json:"id,omitempty"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
}

func setupDB(b *testing.B, scheme string) *surrealdb.DB {
	b.Helper()
	server := fakesdb.NewServer("127.0.0.1:0")
	if err := server.Start(); err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = server.Stop() })

	db, err := surrealdb.Open(context.Background(), &surrealdb.Config{
		Endpoint:  server.URL(scheme),
		Namespace: "bench",
		Database:  "bench",
		Logger:    logger.Nop(),
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close(context.Background()) })
	return db
}

func BenchmarkCreate(b *testing.B) {
	for _, scheme := range []string{"ws", "http"} {
		b.Run(scheme, func(b *testing.B) {
			db := setupDB(b, scheme)
			ctx := context.Background()
			user := map[string]any{"username": "tobi", "password": "1234"}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := db.Create(ctx, fmt.Sprintf("users:%d", i), user); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkSelect benchmarks the selection of a record
func BenchmarkSelect(b *testing.B) {
	for _, scheme := range []string{"ws", "http"} {
		b.Run(scheme, func(b *testing.B) {
			db := setupDB(b, scheme)
			ctx := context.Background()
			if _, err := db.Create(ctx, "users:bob", map[string]any{"username": "bob"}); err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				o, err := db.Select(ctx, "users:bob")
				if err != nil {
					b.Fatal(err)
				}
				if _, err := surrealdb.DecodeAll[testUser](o); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkParallelQuery(b *testing.B) {
	db := setupDB(b, "ws")
	vars := map[string]any{"a": 40, "b": 2}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := db.Query(ctx, "RETURN $a + $b", vars); err != nil {
				b.Fatal(err)
			}
		}
	})
}
