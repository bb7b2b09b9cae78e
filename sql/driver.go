package sql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net/url"

	surrealdb "github.com/surrealdb/surrealdriver"
)

const DriverName = "surrealdb"

func init() {
	sql.Register(DriverName, &Driver{})
}

// Driver opens connections from a DSN such as
//
//	ws://user:pass@localhost:8000?ns=test&db=test&encoding=json
//
// The scheme picks the engine. User info signs in as a root user.
type Driver struct{}

// Open establishes a new connection to SurrealDB.
func (d *Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}

	return connector.Connect(context.Background())
}

// OpenConnector must parse the name in the same format that Driver.Open
// parses the name parameter.
func (d *Driver) OpenConnector(name string) (driver.Connector, error) {
	cfg, err := ParseDSN(name)
	if err != nil {
		return nil, err
	}
	return &Connector{Config: *cfg, driver: d}, nil
}

// ParseDSN turns a DSN into a surrealdb.Config.
func ParseDSN(name string) (*surrealdb.Config, error) {
	u, err := url.Parse(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported value: %s - %w", name, err)
	}

	cfg := &surrealdb.Config{}
	if u.User != nil {
		password, _ := u.User.Password()
		cfg.Auth = &surrealdb.Auth{Username: u.User.Username(), Password: password}
		u.User = nil
	}

	queryValues := u.Query()
	cfg.Namespace = queryValues.Get("ns")
	cfg.Database = queryValues.Get("db")
	cfg.Encoding = queryValues.Get("encoding")
	u.RawQuery = ""

	cfg.Endpoint = u.String()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Connector opens a surrealdb.DB per pooled connection.
type Connector struct {
	Config surrealdb.Config
	driver driver.Driver
}

// Connect establishes a new connection to SurrealDB.
func (c *Connector) Connect(ctx context.Context) (driver.Conn, error) {
	cfg := c.Config
	db, err := surrealdb.Open(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect: %w", err)
	}
	return &Conn{db: db}, nil
}

func (c *Connector) Driver() driver.Driver {
	if c.driver == nil {
		return &Driver{}
	}
	return c.driver
}
