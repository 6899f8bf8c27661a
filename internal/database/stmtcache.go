package database

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// Record is an ordered mapping of column name to value. Handlers build one
// record shape per payload variant, so the set of distinct shapes (and
// therefore cached statements) is small and fixed.
type Record struct {
	cols []string
	vals []interface{}
}

// NewRecord creates an empty record
func NewRecord() *Record {
	return &Record{}
}

// Set appends a column/value pair, preserving insertion order
func (r *Record) Set(col string, val interface{}) *Record {
	r.cols = append(r.cols, col)
	r.vals = append(r.vals, val)
	return r
}

// Len returns the number of columns in the record
func (r *Record) Len() int {
	return len(r.cols)
}

// Columns returns the column names in insertion order
func (r *Record) Columns() []string {
	return r.cols
}

// Values returns the values in insertion order
func (r *Record) Values() []interface{} {
	return r.vals
}

// StmtCache memoizes prepared statements keyed by (database file, statement
// text). Ingestion runs thousands of events per minute; preparing per event
// is forbidden. The cache never evicts - it is bounded by the number of
// distinct handler shapes.
type StmtCache struct {
	mu    sync.Mutex
	stmts map[uint64]*sql.Stmt
}

// NewStmtCache creates an empty statement cache
func NewStmtCache() *StmtCache {
	return &StmtCache{stmts: make(map[uint64]*sql.Stmt)}
}

// InsertOrReplace executes an upsert of the full record, replacing the row
// identified by the table's primary key. Use only when the record carries
// every column the row should keep.
func (c *StmtCache) InsertOrReplace(db *DB, table string, rec *Record) error {
	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(rec.Columns(), ", "),
		placeholders(rec.Len()),
	)
	return c.exec(db, query, rec.Values())
}

// InsertOrIgnore inserts the record only when no row with the same primary
// key exists.
func (c *StmtCache) InsertOrIgnore(db *DB, table string, rec *Record) error {
	query := fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(rec.Columns(), ", "),
		placeholders(rec.Len()),
	)
	return c.exec(db, query, rec.Values())
}

// Update sets the record's columns on rows matching the predicate record.
// Columns absent from the record are left untouched, which is what lets
// partial station updates survive.
func (c *StmtCache) Update(db *DB, table string, rec *Record, where *Record) error {
	assignments := make([]string, 0, rec.Len())
	for _, col := range rec.Columns() {
		assignments = append(assignments, col+" = ?")
	}
	predicates := make([]string, 0, where.Len())
	for _, col := range where.Columns() {
		predicates = append(predicates, col+" = ?")
	}

	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s",
		table,
		strings.Join(assignments, ", "),
		strings.Join(predicates, " AND "),
	)

	args := make([]interface{}, 0, rec.Len()+where.Len())
	args = append(args, rec.Values()...)
	args = append(args, where.Values()...)
	return c.exec(db, query, args)
}

// Stmt returns the memoized prepared statement for (db, query), preparing it
// on first use.
func (c *StmtCache) Stmt(db *DB, query string) (*sql.Stmt, error) {
	key := stmtKey(db.Path(), query)

	c.mu.Lock()
	stmt, ok := c.stmts[key]
	c.mu.Unlock()
	if ok {
		return stmt, nil
	}

	prepared, err := db.Conn().Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement for %s: %w", db.Name(), err)
	}

	c.mu.Lock()
	// Another caller may have prepared the same statement in the meantime.
	if existing, ok := c.stmts[key]; ok {
		c.mu.Unlock()
		_ = prepared.Close()
		return existing, nil
	}
	c.stmts[key] = prepared
	c.mu.Unlock()

	return prepared, nil
}

// Size returns the number of cached statements
func (c *StmtCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stmts)
}

// Close releases all cached statements
func (c *StmtCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stmt := range c.stmts {
		_ = stmt.Close()
	}
	c.stmts = make(map[uint64]*sql.Stmt)
	return nil
}

func (c *StmtCache) exec(db *DB, query string, args []interface{}) error {
	stmt, err := c.Stmt(db, query)
	if err != nil {
		return err
	}
	if _, err := stmt.Exec(args...); err != nil {
		return fmt.Errorf("statement execution failed for %s: %w", db.Name(), err)
	}
	return nil
}

func stmtKey(dbPath, query string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(dbPath))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(query))
	return h.Sum64()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
