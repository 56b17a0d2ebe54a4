// Package sqlstore is the SQL driver shared by the sqlite and postgres
// backends. Nodes live in a single table; the bucket is stored as JSON since
// it is only ever read back whole. Queries are built with ent's dialect
// builder so placeholders and quoting follow the backend.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/shamba-ai/shamba/pkg/merkle"
	"github.com/shamba-ai/shamba/pkg/storage"
)

const nodesTable = "nodes"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		hash        TEXT PRIMARY KEY,
		parent_hash TEXT NULL,
		thread_id   TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT '',
		bucket      TEXT NOT NULL,
		created_at  BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS nodes_parent_hash_idx ON nodes (parent_hash)`,
	`CREATE INDEX IF NOT EXISTS nodes_thread_id_idx ON nodes (thread_id)`,
}

// Driver implements storage.Driver over an ent SQL driver.
type Driver struct {
	drv *entsql.Driver
}

// New wraps db for the named ent dialect (dialect.SQLite or
// dialect.Postgres) and creates the schema if needed. The Driver owns db and
// closes it on Close.
func New(ctx context.Context, db *sql.DB, dialectName string) (*Driver, error) {
	d := &Driver{drv: entsql.OpenDB(dialectName, db)}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return d, nil
}

// DB exposes the underlying handle.
func (d *Driver) DB() *sql.DB {
	return d.drv.DB()
}

// Put inserts the node unless its hash is already stored.
func (d *Driver) Put(ctx context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, errors.New("cannot store nil node")
	}

	bucket, err := json.Marshal(node.Bucket)
	if err != nil {
		return false, fmt.Errorf("encoding bucket: %w", err)
	}

	var parent sql.NullString
	if node.ParentHash != nil {
		parent = sql.NullString{String: *node.ParentHash, Valid: true}
	}

	createdAt := node.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	q, args := d.insertNode(node, parent, string(bucket), createdAt).Query()
	res, err := d.DB().ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("inserting node %s: %w", node.Hash, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a node by its hash.
func (d *Driver) Get(ctx context.Context, hash string) (*merkle.Node, error) {
	q, args := d.selectNodes().Where(entsql.EQ("hash", hash)).Query()

	node, err := scanNode(d.DB().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("getting node %s: %w", hash, err)
	}
	return node, nil
}

// Has checks if a node exists by its hash.
func (d *Driver) Has(ctx context.Context, hash string) (bool, error) {
	q, args := d.builder().Select("hash").From(entsql.Table(nodesTable)).
		Where(entsql.EQ("hash", hash)).
		Query()

	var found string
	err := d.DB().QueryRowContext(ctx, q, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking node %s: %w", hash, err)
	}
	return true, nil
}

// List returns all nodes, oldest first.
func (d *Driver) List(ctx context.Context) ([]*merkle.Node, error) {
	return d.query(ctx, d.selectNodes())
}

// Roots returns all nodes without a parent.
func (d *Driver) Roots(ctx context.Context) ([]*merkle.Node, error) {
	return d.query(ctx, d.selectNodes().Where(entsql.IsNull("parent_hash")))
}

// Leaves returns all nodes without children.
func (d *Driver) Leaves(ctx context.Context) ([]*merkle.Node, error) {
	return d.query(ctx, d.selectLeaves())
}

// Children returns the children of hash, oldest first.
func (d *Driver) Children(ctx context.Context, hash string) ([]*merkle.Node, error) {
	return d.query(ctx, d.selectNodes().Where(entsql.EQ("parent_hash", hash)))
}

// Ancestry returns the path from a node back to its root (node first, root last).
func (d *Driver) Ancestry(ctx context.Context, hash string) ([]*merkle.Node, error) {
	var path []*merkle.Node
	current := hash

	for {
		node, err := d.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		path = append(path, node)

		if node.ParentHash == nil {
			return path, nil
		}
		current = *node.ParentHash
	}
}

// Depth returns the depth of a node (0 for roots).
func (d *Driver) Depth(ctx context.Context, hash string) (int, error) {
	path, err := d.Ancestry(ctx, hash)
	if err != nil {
		return 0, err
	}
	return len(path) - 1, nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

func (d *Driver) insertNode(node *merkle.Node, parent sql.NullString, bucket string, createdAt time.Time) *entsql.InsertBuilder {
	return d.builder().Insert(nodesTable).
		Columns("hash", "parent_hash", "thread_id", "role", "bucket", "created_at").
		Values(node.Hash, parent, node.Bucket.ThreadID, node.Bucket.Role, bucket, createdAt.UnixNano()).
		OnConflict(entsql.ConflictColumns("hash"), entsql.DoNothing())
}

// selectNodes selects every node column, oldest first.
func (d *Driver) selectNodes() *entsql.Selector {
	return d.builder().Select("hash", "parent_hash", "bucket", "created_at").
		From(entsql.Table(nodesTable)).
		OrderBy("created_at", "hash")
}

// selectLeaves selects nodes that no other node names as its parent.
func (d *Driver) selectLeaves() *entsql.Selector {
	n := entsql.Table(nodesTable).As("n")
	c := entsql.Table(nodesTable).As("c")

	children := d.builder().Select(c.C("hash")).From(c).
		Where(entsql.ColumnsEQ(c.C("parent_hash"), n.C("hash")))

	return d.builder().Select(n.C("hash"), n.C("parent_hash"), n.C("bucket"), n.C("created_at")).
		From(n).
		Where(entsql.NotExists(children)).
		OrderBy(n.C("created_at"), n.C("hash"))
}

func (d *Driver) query(ctx context.Context, sel *entsql.Selector) ([]*merkle.Node, error) {
	q, args := sel.Query()
	rows, err := d.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	nodes := []*merkle.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}
	return nodes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*merkle.Node, error) {
	var (
		node      merkle.Node
		parent    sql.NullString
		bucket    string
		createdAt int64
	)

	if err := s.Scan(&node.Hash, &parent, &bucket, &createdAt); err != nil {
		return nil, err
	}

	if parent.Valid {
		p := parent.String
		node.ParentHash = &p
	}
	if err := json.Unmarshal([]byte(bucket), &node.Bucket); err != nil {
		return nil, fmt.Errorf("decoding bucket of %s: %w", node.Hash, err)
	}
	node.CreatedAt = time.Unix(0, createdAt).UTC()

	return &node, nil
}
