// Package db runs database steps. DSNs select the driver by scheme:
// sqlite://path (or sqlite:path), postgres://..., mysql://... Only the
// SQLite driver is linked; postgres and mysql DSNs parse but need their
// drivers registered by the embedding program.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/flowspec/packages/core/leaf"
)

// DefaultQueryTimeout bounds a query when the step sets no timeout.
const DefaultQueryTimeout = 30 * time.Second

// Result holds the rows a query produced.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int
}

// Client wraps one open database connection.
type Client struct {
	db     *sql.DB
	driver string
}

// Open parses the DSN, opens the connection, and verifies it with a
// ping. Connection failures are network-kind leaf errors so retry
// policies can target them.
func Open(ctx context.Context, dsn string) (*Client, error) {
	driver, source, err := ParseDSN(dsn)
	if err != nil {
		return nil, leaf.WrapError(leaf.KindSystem, err, "database dsn")
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, leaf.WrapError(leaf.KindSystem, err, "opening %s database", driver)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, leaf.WrapError(leaf.KindNetwork, err, "connecting to %s database", driver)
	}

	return &Client{db: db, driver: driver}, nil
}

func (c *Client) Driver() string {
	return c.driver
}

func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Exec runs one statement without reading rows back.
func (c *Client) Exec(ctx context.Context, statement string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, statement); err != nil {
		return leaf.WrapError(leaf.KindBusiness, err, "exec failed")
	}
	return nil
}

// Query runs one statement and scans every row into a map keyed by
// column name. Byte columns come back as strings so extraction and
// comparison work on text.
func (c *Client) Query(ctx context.Context, query string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, leaf.WrapError(leaf.KindBusiness, err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, leaf.WrapError(leaf.KindParsing, err, "reading columns")
	}

	result := &Result{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, leaf.WrapError(leaf.KindParsing, err, "scanning row")
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, leaf.WrapError(leaf.KindParsing, err, "iterating rows")
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// ParseDSN splits a connection string into driver name and data source.
func ParseDSN(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)

	if strings.HasPrefix(dsn, "sqlite://") {
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://"), nil
	}
	if strings.HasPrefix(dsn, "sqlite:") {
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite:"), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", "", fmt.Errorf("invalid dsn: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "mysql":
		host := u.Host
		if u.Port() == "" {
			host += ":3306"
		}
		password, _ := u.User.Password()
		source = fmt.Sprintf("%s:%s@tcp(%s)%s", u.User.Username(), password, host, u.Path)
		if u.RawQuery != "" {
			source += "?" + u.RawQuery
		}
		return "mysql", source, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
	}
}
