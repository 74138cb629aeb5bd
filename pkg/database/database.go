// Package database wires the storage engine's components together
// the way an executor would: open a table-backed B+Tree index, take
// the right table/row locks before touching it, and commit or abort
// the surrounding transaction. It is not a query engine — there is no
// SQL and no planner — it exists to give every core component at
// least one real, end-to-end caller.
package database

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"

	"latchkv/pkg/bptree"
	"latchkv/pkg/buffer"
	"latchkv/pkg/catalog"
	"latchkv/pkg/config"
	"latchkv/pkg/disk"
	"latchkv/pkg/lockmanager"
	"latchkv/pkg/rid"
	"latchkv/pkg/txn"
)

var tableNamePattern = regexp.MustCompile(`\W`)

// ErrInvalidTableName is returned by CreateTable for non-alphanumeric
// names.
var ErrInvalidTableName = errors.New("database: table name must be alphanumeric")

// ErrTableExists is returned by CreateTable when the table already
// exists.
var ErrTableExists = errors.New("database: table already exists")

// ErrTableNotFound is returned by GetTable for an unknown table.
var ErrTableNotFound = errors.New("database: table not found")

// Table is one B+Tree-indexed table, keyed by int64 row key.
type Table struct {
	Name string
	tree *bptree.BPlusTree[int64, rid.RID]
}

// Database owns the shared buffer pool, catalog, and lock manager
// every table in it is built on.
type Database struct {
	basepath string
	cfg      config.Config
	pool     *buffer.Pool
	disk     *disk.Manager
	cat      *catalog.Catalog
	locks    *lockmanager.Manager
	tables   map[string]*Table
}

// Open (re-)initializes a database rooted at folder.
func Open(folder string) (*Database, error) {
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	if err := os.MkdirAll(folder, 0775); err != nil {
		return nil, err
	}
	cfg := config.Default()
	d, err := disk.Open(folder + "pages.db")
	if err != nil {
		return nil, err
	}
	pool := buffer.New(d, cfg.BufferPoolFrames, cfg.PageSize, cfg.ReplacerK)
	cat, err := catalog.Open(pool)
	if err != nil {
		d.Close()
		return nil, err
	}
	return &Database{
		basepath: folder,
		cfg:      cfg,
		pool:     pool,
		disk:     d,
		cat:      cat,
		locks:    lockmanager.New(cfg.DeadlockDetectionInterval),
		tables:   make(map[string]*Table),
	}, nil
}

// Close stops the lock manager's detector, flushes every page, and
// closes the backing file.
func (db *Database) Close() error {
	db.locks.Stop()
	if err := db.pool.FlushAll(); err != nil {
		return err
	}
	return db.disk.Close()
}

// CreateTable registers a new, empty table.
func (db *Database) CreateTable(name string) (*Table, error) {
	if tableNamePattern.MatchString(name) {
		return nil, ErrInvalidTableName
	}
	if _, exists := db.tables[name]; exists {
		return nil, ErrTableExists
	}
	tbl := &Table{
		Name: name,
		tree: bptree.New[int64, rid.RID](name, bptree.IntComparator, 64, db.cat),
	}
	db.tables[name] = tbl
	return tbl, nil
}

// GetTable returns a registered table by name.
func (db *Database) GetTable(name string) (*Table, error) {
	tbl, ok := db.tables[name]
	if !ok {
		return nil, ErrTableNotFound
	}
	return tbl, nil
}

// Begin starts a new transaction under the database's lock manager.
func (db *Database) Begin(isolation txn.IsolationLevel) *txn.Transaction {
	return db.locks.Begin(isolation)
}

// Commit releases every lock t holds and marks it committed.
func (db *Database) Commit(t *txn.Transaction) {
	db.locks.ReleaseAll(t)
	t.SetState(txn.Committed)
}

// Abort releases every lock t holds and marks it aborted.
func (db *Database) Abort(t *txn.Transaction) {
	db.locks.ReleaseAll(t)
	t.SetState(txn.Aborted)
}

// Get looks up key in table under a shared row lock.
func (db *Database) Get(t *txn.Transaction, table string, key int64) (rid.RID, bool, error) {
	tbl, err := db.GetTable(table)
	if err != nil {
		return rid.RID{}, false, err
	}
	if err := db.locks.LockTable(t, txn.IntentionShared, table); err != nil {
		return rid.RID{}, false, err
	}
	if err := db.locks.LockRow(t, txn.Shared, table, keyString(key)); err != nil {
		return rid.RID{}, false, err
	}
	v, ok := tbl.tree.GetValue(key)
	return v, ok, nil
}

// Insert adds key -> value to table under an exclusive row lock.
func (db *Database) Insert(t *txn.Transaction, table string, key int64, value rid.RID) error {
	tbl, err := db.GetTable(table)
	if err != nil {
		return err
	}
	if err := db.locks.LockTable(t, txn.IntentionExclusive, table); err != nil {
		return err
	}
	if err := db.locks.LockRow(t, txn.Exclusive, table, keyString(key)); err != nil {
		return err
	}
	return tbl.tree.Insert(key, value)
}

// Delete removes key from table under an exclusive row lock.
func (db *Database) Delete(t *txn.Transaction, table string, key int64) error {
	tbl, err := db.GetTable(table)
	if err != nil {
		return err
	}
	if err := db.locks.LockTable(t, txn.IntentionExclusive, table); err != nil {
		return err
	}
	if err := db.locks.LockRow(t, txn.Exclusive, table, keyString(key)); err != nil {
		return err
	}
	return tbl.tree.Delete(key)
}

func keyString(key int64) string {
	return strconv.FormatInt(key, 10)
}
