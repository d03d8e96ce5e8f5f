package testsupport

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

// NewSQLiteDB opens a private in-memory SQLite database, runs the given DDL
// statements and closes the database when the test ends.
func NewSQLiteDB(t testing.TB, schema ...string) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// one connection keeps every query on the same in-memory database
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range schema {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to apply schema %q: %v", stmt, err)
		}
	}

	return db
}

// QueryCounter is a bun.QueryHook counting executed statements by operation
// (SELECT, INSERT, UPDATE, DELETE, BEGIN, COMMIT, ROLLBACK, ...).
type QueryCounter struct {
	counts *xsync.MapOf[string, *xsync.Counter]
}

// NewQueryCounter returns an empty counter.
func NewQueryCounter() *QueryCounter {
	return &QueryCounter{counts: xsync.NewMapOf[string, *xsync.Counter]()}
}

// Attach registers the counter on db and returns it.
func (c *QueryCounter) Attach(db *bun.DB) *QueryCounter {
	db.AddQueryHook(c)
	return c
}

func (c *QueryCounter) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (c *QueryCounter) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	op := strings.ToUpper(event.Operation())
	counter, _ := c.counts.LoadOrCompute(op, xsync.NewCounter)
	counter.Inc()
}

// Count returns how many statements of op ran.
func (c *QueryCounter) Count(op string) int {
	counter, ok := c.counts.Load(strings.ToUpper(op))
	if !ok {
		return 0
	}
	return int(counter.Value())
}

// Total returns the number of statements seen.
func (c *QueryCounter) Total() int {
	total := 0
	c.counts.Range(func(_ string, counter *xsync.Counter) bool {
		total += int(counter.Value())
		return true
	})
	return total
}

// Reset clears every count.
func (c *QueryCounter) Reset() {
	c.counts.Range(func(op string, _ *xsync.Counter) bool {
		c.counts.Delete(op)
		return true
	})
}
