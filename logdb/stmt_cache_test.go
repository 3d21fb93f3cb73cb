// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/cita"
)

func TestStmtCacheReusesQueryShapes(t *testing.T) {
	db, err := NewMem()
	require.NoError(t, err)
	defer db.Close()

	var (
		ctx  = context.Background()
		addr = cita.BytesToAddress([]byte("contract"))
	)
	byAddr := &LogFilter{CriteriaSet: []*LogCriteria{{Address: &addr}}}

	for range 3 {
		_, err := db.FilterLogs(ctx, byAddr)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, db.stmtCache.len(), "same shape, same statement")

	_, err = db.FilterLogs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, db.stmtCache.len())

	_, err = db.stmtCache.prepare(ctx, "SELECT nope FROM")
	assert.Error(t, err)
	assert.Equal(t, 2, db.stmtCache.len())

	db.stmtCache.close()
	assert.Equal(t, 0, db.stmtCache.len())
}
