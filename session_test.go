package surrealdb

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealdriver/internal/testenv"
	slogadapter "github.com/surrealdb/surrealdriver/pkg/logger/slog"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	tests := []struct {
		name  string
		token string
		want  time.Time
		ok    bool
	}{
		{"empty", "", time.Time{}, false},
		{"not a jwt", "opaque-token", time.Time{}, false},
		{"no exp", signedToken(t, jwt.MapClaims{"ID": "root"}), time.Time{}, false},
		{"exp", signedToken(t, jwt.MapClaims{"exp": exp.Unix()}), exp, true},
		{"expired", signedToken(t, jwt.MapClaims{"exp": exp.Add(-2 * time.Hour).Unix()}), exp.Add(-2 * time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tokenExpiry(tt.token)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSessionClone(t *testing.T) {
	s := Session{Namespace: "ns", Vars: map[string]any{"a": 1}}
	c := s.clone()
	c.Vars["b"] = 2
	c.Namespace = "other"

	assert.Equal(t, map[string]any{"a": 1}, s.Vars)
	assert.Equal(t, "ns", s.Namespace)
}

func TestAuthenticateWithExpiredTokenIsForwarded(t *testing.T) {
	server := newFakeServer(t)
	db := openTestDB(t, server, "http")

	token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, db.Authenticate(context.Background(), token))
	assert.Equal(t, token, db.Session().Token)
}

func TestSessionLogging(t *testing.T) {
	var buf testenv.LogBuffer
	server := newFakeServer(t)
	db, err := Open(context.Background(), &Config{
		Endpoint:  server.URL("http"),
		Namespace: "test",
		Database:  "test",
		Logger:    slogadapter.New(testenv.NewLogHandler(testenv.WithWriter(&buf))),
	})
	require.NoError(t, err)
	defer db.Close(context.Background())

	token := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, db.Authenticate(context.Background(), token))

	logs := buf.String()
	assert.Contains(t, logs, "DEBUG: selected namespace and database namespace=test, database=test")
	assert.Contains(t, logs, "WARN: authenticated with a token whose exp claim has passed")
	assert.NotContains(t, logs, token)
}
