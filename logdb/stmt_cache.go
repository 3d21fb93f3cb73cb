// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"
)

// stmtCache keeps the prepared form of every filter query shape. The shapes are
// bounded by the criteria and topic combinations FilterLogs can emit.
type stmtCache struct {
	db    *sql.DB
	lock  sync.Mutex
	stmts map[string]*sql.Stmt
}

func newStmtCache(db *sql.DB) *stmtCache {
	return &stmtCache{db: db, stmts: make(map[string]*sql.Stmt)}
}

// prepare returns the statement of query, preparing it on first use.
func (c *stmtCache) prepare(ctx context.Context, query string) (*sql.Stmt, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if stmt, ok := c.stmts[query]; ok {
		metricStmtCache().AddWithLabel(1, map[string]string{"event": "hit"})
		return stmt, nil
	}
	metricStmtCache().AddWithLabel(1, map[string]string{"event": "miss"})

	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "prepare log query")
	}
	c.stmts[query] = stmt
	return stmt, nil
}

func (c *stmtCache) len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.stmts)
}

// close releases all statements, the cache stays usable.
func (c *stmtCache) close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	for query, stmt := range c.stmts {
		_ = stmt.Close()
		delete(c.stmts, query)
	}
}
