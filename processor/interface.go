// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package processor

import (
	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/tx"
)

// LogWriter receives the receipts of applied blocks. *logdb.Writer implements it.
type LogWriter interface {
	Write(b *block.Block, receipts tx.Receipts) error
	Commit() error
	Rollback() error
}
