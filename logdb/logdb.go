// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/tx"
)

var logger = log.WithContext("pkg", "logdb")

// LogDB indexes the logs of applied blocks for filtering.
type LogDB struct {
	path          string
	db            *sql.DB
	driverVersion string
	stmtCache     *stmtCache
}

// New create or open log db at given path.
func New(path string) (logDB *LogDB, err error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	defer func() {
		if logDB == nil {
			db.Close()
		}
	}()
	// single writer, and the only way to keep an in-memory db alive
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(logTableSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}

	driverVer, _, _ := sqlite3.Version()
	logger.Debug("log db opened", "path", path, "sqlite", driverVer)
	return &LogDB{
		path:          path,
		db:            db,
		driverVersion: driverVer,
		stmtCache:     newStmtCache(db),
	}, nil
}

// NewMem create a log db in ram.
func NewMem() (*LogDB, error) {
	return New(":memory:")
}

// Close close the log db.
func (db *LogDB) Close() error {
	db.stmtCache.close()
	return db.db.Close()
}

func (db *LogDB) Path() string {
	return db.path
}

func (db *LogDB) DriverVersion() string {
	return db.driverVersion
}

// FilterLogs returns logs matching the filter. A nil filter selects all logs.
func (db *LogDB) FilterLogs(ctx context.Context, filter *LogFilter) ([]*Log, error) {
	if filter == nil {
		return db.queryLogs(ctx, logSelect+" ORDER BY seq ASC")
	}
	metricsHandleLogFilter(filter)

	var (
		args []any
		stmt = logSelect + " WHERE 1"
	)
	if filter.Range != nil {
		if filter.Range.From > math.MaxUint32 {
			return nil, nil
		}
		args = append(args, newSequence(filter.Range.From, 0))
		stmt += " AND seq >= ?"
		if filter.Range.To >= filter.Range.From {
			args = append(args, newSequence(min(filter.Range.To, math.MaxUint32), math.MaxInt32))
			stmt += " AND seq <= ?"
		}
	}

	for i, criteria := range filter.CriteriaSet {
		if i == 0 {
			stmt += " AND (( 1"
		} else {
			stmt += " OR ( 1"
		}
		if criteria.Address != nil {
			args = append(args, criteria.Address.Bytes())
			stmt += " AND address = ?"
		}
		for j, topic := range criteria.Topics {
			if topic != nil {
				args = append(args, topic.Bytes())
				stmt += fmt.Sprintf(" AND topic%d = ?", j)
			}
		}
		stmt += " )"
	}
	if len(filter.CriteriaSet) > 0 {
		stmt += " )"
	}

	if filter.Order == DESC {
		stmt += " ORDER BY seq DESC"
	} else {
		stmt += " ORDER BY seq ASC"
	}

	if filter.Options != nil {
		stmt += " LIMIT ?, ?"
		args = append(args, filter.Options.Offset, filter.Options.Limit)
	}
	return db.queryLogs(ctx, stmt, args...)
}

func (db *LogDB) queryLogs(ctx context.Context, query string, args ...any) ([]*Log, error) {
	stmt, err := db.stmtCache.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		var (
			seq       sequence
			blockHash []byte
			blockTime uint64
			txHash    []byte
			txIndex   uint32
			sender    []byte
			address   []byte
			topics    [MaxTopics][]byte
			data      []byte
		)
		if err := rows.Scan(
			&seq,
			&blockHash,
			&blockTime,
			&txHash,
			&txIndex,
			&sender,
			&address,
			&topics[0],
			&topics[1],
			&topics[2],
			&topics[3],
			&data,
		); err != nil {
			return nil, err
		}
		l := &Log{
			BlockNumber: seq.BlockNumber(),
			Index:       seq.Index(),
			BlockHash:   cita.BytesToBytes32(blockHash),
			BlockTime:   blockTime,
			TxHash:      cita.BytesToBytes32(txHash),
			TxIndex:     txIndex,
			Sender:      cita.BytesToAddress(sender),
			Address:     cita.BytesToAddress(address),
			Data:        data,
		}
		for i, topic := range topics {
			if len(topic) > 0 {
				h := cita.BytesToBytes32(topic)
				l.Topics[i] = &h
			}
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// NewestBlockNumber returns the number of the newest block having logs.
func (db *LogDB) NewestBlockNumber() (uint64, bool, error) {
	var seq sql.NullInt64
	if err := db.db.QueryRow("SELECT MAX(seq) FROM log").Scan(&seq); err != nil {
		return 0, false, err
	}
	if !seq.Valid {
		return 0, false, nil
	}
	return sequence(seq.Int64).BlockNumber(), true, nil
}

// HasBlockLogs tells whether any log of the block with given hash is indexed.
func (db *LogDB) HasBlockLogs(hash cita.Bytes32) (bool, error) {
	var count int
	if err := db.db.QueryRow("SELECT COUNT(1) FROM log WHERE blockHash = ? LIMIT 1", hash.Bytes()).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// NewWriter creates a log writer.
func (db *LogDB) NewWriter() *Writer {
	return &Writer{db: db}
}

// Writer writes logs in batch. Nothing is visible before Commit.
type Writer struct {
	db *LogDB
	tx *sql.Tx
}

func (w *Writer) exec(query string, args ...any) (err error) {
	if w.tx == nil {
		if w.tx, err = w.db.db.Begin(); err != nil {
			return err
		}
	}
	_, err = w.tx.Exec(query, args...)
	return err
}

// Write adds the logs of an applied block. receipts must line up with the block transactions.
func (w *Writer) Write(b *block.Block, receipts tx.Receipts) error {
	var (
		header = b.Header()
		txs    = b.Transactions()
		index  uint32
	)
	if len(txs) != len(receipts) {
		return errors.Errorf("receipts count mismatch: want %d, got %d", len(txs), len(receipts))
	}
	if header.Number() > math.MaxUint32 {
		return errors.New("block number out of range")
	}

	blockHash := header.Hash()
	for i, receipt := range receipts {
		if len(receipt.Logs) == 0 {
			continue
		}
		sender, err := txs[i].Sender()
		if err != nil {
			return errors.Wrapf(err, "recover sender of tx %d", i)
		}
		for _, l := range receipt.Logs {
			var topics [MaxTopics][]byte
			for j := 0; j < len(l.Topics) && j < MaxTopics; j++ {
				topics[j] = l.Topics[j].Bytes()
			}
			if err := w.exec(
				"INSERT OR REPLACE INTO log(seq, blockHash, blockTime, txHash, txIndex, sender, address, topic0, topic1, topic2, topic3, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
				newSequence(header.Number(), index),
				blockHash.Bytes(),
				header.Timestamp(),
				receipt.TxHash.Bytes(),
				i,
				sender.Bytes(),
				l.Address.Bytes(),
				topics[0],
				topics[1],
				topics[2],
				topics[3],
				l.Data,
			); err != nil {
				return err
			}
			index++
		}
	}
	metricLogsWritten().Add(int64(index))
	return nil
}

// Truncate removes logs of blocks numbered from blockNum onwards.
func (w *Writer) Truncate(blockNum uint64) error {
	if blockNum > math.MaxUint32 {
		return nil
	}
	return w.exec("DELETE FROM log WHERE seq >= ?", newSequence(blockNum, 0))
}

// Commit commits pending writes.
func (w *Writer) Commit() (err error) {
	if w.tx == nil {
		return nil
	}
	err = w.tx.Commit()
	w.tx = nil
	return
}

// Rollback drops pending writes.
func (w *Writer) Rollback() (err error) {
	if w.tx == nil {
		return nil
	}
	err = w.tx.Rollback()
	w.tx = nil
	return
}
