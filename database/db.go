package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	rqlitehttp "github.com/rqlite/rqlite-go-http"
	"github.com/rs/zerolog"

	"github.com/captainplanet9000/cival-dashboard-sub013/shared"
)

const (
	// SQL statements.
	createWatchlistTableSQL = "CREATE TABLE IF NOT EXISTS watchlist (id TEXT PRIMARY KEY, venue TEXT NOT NULL, symbol TEXT NOT NULL, displayname TEXT, addedon INTEGER NOT NULL)"
	createWatchlistEntrySQL = "INSERT INTO watchlist(id, venue, symbol, displayname, addedon) VALUES(?,?,?,?,?)"
	deleteWatchlistEntrySQL = "DELETE FROM watchlist WHERE id = ?"
	listWatchlistEntriesSQL = "SELECT id, venue, symbol, displayname, addedon FROM watchlist ORDER BY addedon ASC, id ASC"
	pingSQL                 = "SELECT 1"
)

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	// Endpoint represents the database connection endpoint.
	Endpoint string
	// User is the database user.
	User string
	// Pass is the database user pass.
	Pass string
	// Logger is the database logger.
	Logger *zerolog.Logger
}

// Database represents the database connection.
type Database struct {
	cfg    *DatabaseConfig
	client *rqlitehttp.Client
}

// Ensure the database implements the WatchlistStore interface.
var _ shared.WatchlistStore = (*Database)(nil)

// NewDatabase initializes a new database connection.
func NewDatabase(ctx context.Context, cfg *DatabaseConfig) (*Database, error) {
	httpc := &http.Client{Timeout: time.Second * 5}
	client, err := rqlitehttp.NewClient(cfg.Endpoint, httpc)
	if err != nil {
		return nil, fmt.Errorf("creating database client: %w", err)
	}

	client.SetBasicAuth(cfg.User, cfg.Pass)

	db := &Database{
		cfg:    cfg,
		client: client,
	}

	err = db.bootstrap(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrapping database: %w", err)
	}

	return db, nil
}

// bootstrap initializes the database.
func (db *Database) bootstrap(ctx context.Context) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{SQL: createWatchlistTableSQL},
	}, &rqlitehttp.ExecuteOptions{
		Transaction: true,
		Timings:     true,
	})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating watchlist table: %d -> %s", idx, errStr)
	}

	return nil
}

// Ping asserts the database is reachable.
func (db *Database) Ping(ctx context.Context) error {
	_, err := db.client.QuerySingle(ctx, pingSQL)
	return err
}

// CreateWatchlistEntry persists the provided watchlist entry.
func (db *Database) CreateWatchlistEntry(ctx context.Context, entry *shared.WatchlistEntry) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              createWatchlistEntrySQL,
			PositionalParams: []any{entry.ID, entry.Venue, entry.Symbol, entry.DisplayName, entry.AddedAt},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("creating watchlist entry %s: %d -> %s", entry.ID, idx, errStr)
	}

	return nil
}

// DeleteWatchlistEntry removes the watchlist entry with the provided id.
func (db *Database) DeleteWatchlistEntry(ctx context.Context, id string) error {
	resp, err := db.client.Execute(ctx, rqlitehttp.SQLStatements{
		{
			SQL:              deleteWatchlistEntrySQL,
			PositionalParams: []any{id},
		},
	}, &rqlitehttp.ExecuteOptions{Transaction: true, Timings: true})
	if err != nil {
		return err
	}

	has, idx, errStr := resp.HasError()
	if has {
		return fmt.Errorf("deleting watchlist entry %s: %d -> %s", id, idx, errStr)
	}

	return nil
}

// ListWatchlistEntries fetches all persisted watchlist entries, ordered by
// when they were added.
func (db *Database) ListWatchlistEntries(ctx context.Context) ([]shared.WatchlistEntry, error) {
	resp, err := db.client.QuerySingle(ctx, listWatchlistEntriesSQL)
	if err != nil {
		return nil, err
	}

	entries := make([]shared.WatchlistEntry, 0)
	for _, result := range resp.GetQueryResultsAssoc() {
		if result.Error != "" {
			return nil, fmt.Errorf("listing watchlist entries: %s", result.Error)
		}

		for _, row := range result.Rows {
			id, ok := row["id"].(string)
			if !ok {
				db.cfg.Logger.Error().Msgf("unexpected watchlist row shape: %s", spew.Sdump(row))
				continue
			}

			entries = append(entries, shared.WatchlistEntry{
				ID:          id,
				Venue:       rowString(row, "venue"),
				Symbol:      rowString(row, "symbol"),
				DisplayName: rowString(row, "displayname"),
				AddedAt:     rowInt64(row, "addedon"),
			})
		}
	}

	return entries, nil
}

// rowString extracts a string column from the provided row.
func rowString(row map[string]any, key string) string {
	v, _ := row[key].(string)
	return v
}

// rowInt64 extracts an integer column from the provided row. Numeric values
// decoded from JSON arrive as floats.
func rowInt64(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
