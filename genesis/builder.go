// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/state"
)

// Builder helper to build genesis block.
type Builder struct {
	timestamp uint64
	gasLimit  uint64
	proposer  cita.Address

	stateProcs []func(state *state.State) error
}

// Timestamp set timestamp.
func (b *Builder) Timestamp(t uint64) *Builder {
	b.timestamp = t
	return b
}

// GasLimit set gas limit.
func (b *Builder) GasLimit(limit uint64) *Builder {
	b.gasLimit = limit
	return b
}

// Proposer set the author recorded in the genesis header.
func (b *Builder) Proposer(addr cita.Address) *Builder {
	b.proposer = addr
	return b
}

// State add a state process
func (b *Builder) State(proc func(state *state.State) error) *Builder {
	b.stateProcs = append(b.stateProcs, proc)
	return b
}

// ComputeHash computes the genesis block hash without touching any persistent db.
func (b *Builder) ComputeHash() (cita.Bytes32, error) {
	db := muxdb.NewMem()
	defer db.Close()

	blk, err := b.Build(db)
	if err != nil {
		return cita.Bytes32{}, err
	}
	return blk.Header().Hash(), nil
}

// Build runs the state processes on an empty state, commits it and returns the genesis block.
func (b *Builder) Build(db *muxdb.MuxDB) (*block.Block, error) {
	st, err := state.New(db, cita.Bytes32{})
	if err != nil {
		return nil, err
	}

	for _, proc := range b.stateProcs {
		if err := proc(st); err != nil {
			return nil, errors.Wrap(err, "state process")
		}
	}

	stateRoot, err := st.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "commit state")
	}

	return new(block.Builder).
		Timestamp(b.timestamp).
		GasLimit(b.gasLimit).
		Proposer(b.proposer).
		StateRoot(stateRoot).
		ReceiptsRoot(cita.EmptyRoot).
		Build(), nil
}
