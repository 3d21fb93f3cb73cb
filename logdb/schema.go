// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

// seq is (blockNumber << 31) | logIndex, logIndex counts logs within the block
const logTableSchema = `
CREATE TABLE IF NOT EXISTS log (
	seq INTEGER PRIMARY KEY NOT NULL,
	blockHash BLOB NOT NULL,
	blockTime INTEGER NOT NULL,
	txHash BLOB NOT NULL,
	txIndex INTEGER NOT NULL,
	sender BLOB NOT NULL,
	address BLOB NOT NULL,
	topic0 BLOB,
	topic1 BLOB,
	topic2 BLOB,
	topic3 BLOB,
	data BLOB
);

CREATE INDEX IF NOT EXISTS log_i_address ON log(address, seq);
CREATE INDEX IF NOT EXISTS log_i_topic0 ON log(topic0, seq);
CREATE INDEX IF NOT EXISTS log_i_topic1 ON log(topic1, seq);
CREATE INDEX IF NOT EXISTS log_i_topic2 ON log(topic2, seq);
CREATE INDEX IF NOT EXISTS log_i_topic3 ON log(topic3, seq);
`

const logSelect = `SELECT seq, blockHash, blockTime, txHash, txIndex, sender, address, topic0, topic1, topic2, topic3, data FROM log`
