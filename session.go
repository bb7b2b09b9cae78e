package surrealdb

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is a snapshot of the client-side session state of a DB.
type Session struct {
	Endpoint  string
	Namespace string
	Database  string
	Token     string
	Vars      map[string]any
}

func (s Session) clone() Session {
	c := s
	c.Vars = make(map[string]any, len(s.Vars))
	for k, v := range s.Vars {
		c.Vars[k] = v
	}
	return c
}

// Session returns a copy of the current session state. Changing the copy does
// not affect the DB.
func (db *DB) Session() Session {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.session.clone()
}

// TokenExpiry reads the exp claim of the current token. The signature is not
// verified; the server remains the only judge of a token's validity.
// The second result is false when there is no token or it carries no expiry.
func (db *DB) TokenExpiry() (time.Time, bool) {
	db.mu.RLock()
	token := db.session.Token
	db.mu.RUnlock()

	return tokenExpiry(token)
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
