// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package processor applies blocks of transactions to the world state.
package processor

import (
	"runtime"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/muxdb"
	xrt "github.com/citahub/cita-executor/runtime"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/xenv"
)

var logger = log.WithContext("pkg", "processor")

// Options tune block application.
type Options struct {
	// gas a single sender may spend per block, zero means the block gas limit
	AccountGasLimit uint64
	// per sender overrides of AccountGasLimit
	SpecificGasLimits map[cita.Address]uint64
	Tracing           bool
}

// Result is the outcome of an applied block.
type Result struct {
	// the input block with gas used, state root and receipts root filled
	Block    *block.Block
	Receipts tx.Receipts
	// per transaction, nil for rejected ones
	Executed []*xrt.Executed
}

// Processor applies blocks on top of a parent state.
type Processor struct {
	db      *muxdb.MuxDB
	config  *xrt.Config
	deps    xrt.Deps
	options Options
	logs    LogWriter
}

// New creates a processor. A nil config selects runtime.DefaultConfig.
func New(db *muxdb.MuxDB, config *xrt.Config, deps xrt.Deps, options Options) *Processor {
	if config == nil {
		config = xrt.DefaultConfig()
	}
	return &Processor{
		db:      db,
		config:  config,
		deps:    deps,
		options: options,
	}
}

// WithLogWriter makes the processor hand the receipts of every applied block to w.
func (p *Processor) WithLogWriter(w LogWriter) *Processor {
	p.logs = w
	return p
}

// Apply executes the transactions of blk on the state at parentRoot and commits the result.
// lastHashes holds recent block hashes, the parent first.
func (p *Processor) Apply(parentRoot cita.Bytes32, blk *block.Block, lastHashes []cita.Bytes32) (*Result, error) {
	startTime := time.Now()

	st, err := state.New(p.db, parentRoot)
	if err != nil {
		return nil, errors.Wrap(err, "open parent state")
	}

	var (
		header = blk.Header()
		txs    = blk.Transactions()
	)
	recoverSenders(txs)

	env := &xenv.EnvInfo{
		Number:     header.Number(),
		Author:     header.Proposer(),
		Timestamp:  header.Timestamp(),
		GasLimit:   header.GasLimit(),
		LastHashes: lastHashes,
	}

	var (
		receipts  = make(tx.Receipts, 0, len(txs))
		executed  = make([]*xrt.Executed, 0, len(txs))
		remaining = make(map[cita.Address]uint64)
	)
	for i, t := range txs {
		sender, _ := t.Sender()
		left, ok := remaining[sender]
		if !ok {
			left = p.accountGasLimit(sender, env.GasLimit)
		}
		env.AccountGasLimit = left

		receipt, exec, err := p.applyTx(st, env, t)
		if err != nil {
			return nil, errors.Wrapf(err, "apply tx %d", i)
		}
		used := receipt.CumulativeGasUsed - env.GasUsed
		env.GasUsed = receipt.CumulativeGasUsed
		remaining[sender] = left - min(used, left)

		if receipt.Error != tx.ReceiptOK {
			metricReceiptsErrors().AddWithLabel(1, map[string]string{"error": receipt.Error.String()})
		}
		receipts = append(receipts, receipt)
		executed = append(executed, exec)
	}

	root, err := st.Commit()
	if err != nil {
		return nil, errors.Wrap(err, "commit state")
	}
	applied := blk.WithExecuted(env.GasUsed, root, receipts.RootHash())

	if p.logs != nil {
		if err := p.logs.Write(applied, receipts); err != nil {
			_ = p.logs.Rollback()
			return nil, errors.Wrap(err, "write logs")
		}
		if err := p.logs.Commit(); err != nil {
			return nil, errors.Wrap(err, "commit logs")
		}
	}

	elapsed := time.Since(startTime)
	metricBlocksApplied().Add(1)
	metricBlockDuration().Observe(elapsed.Milliseconds())
	metricBlockGasUsed().Set(int64(env.GasUsed))
	logger.Info("block applied",
		"number", header.Number(),
		"txs", len(txs),
		"gasUsed", env.GasUsed,
		"root", root,
		"elapsed", elapsed,
	)

	return &Result{
		Block:    applied,
		Receipts: receipts,
		Executed: executed,
	}, nil
}

func (p *Processor) accountGasLimit(sender cita.Address, blockLimit uint64) uint64 {
	if limit, ok := p.options.SpecificGasLimits[sender]; ok {
		return limit
	}
	if p.options.AccountGasLimit > 0 {
		return p.options.AccountGasLimit
	}
	return blockLimit
}

// applyTx runs a transaction inside its own checkpoint. A rejected transaction leaves
// nothing behind but the fee charged for it.
func (p *Processor) applyTx(st *state.State, env *xenv.EnvInfo, t *tx.Transaction) (*tx.Receipt, *xrt.Executed, error) {
	st.Checkpoint()
	e := xrt.New(st, env, p.config, p.deps)
	executed, err := e.Transact(t, xrt.TransactOptions{Tracing: p.options.Tracing})
	if err != nil {
		st.RevertToCheckpoint()
		ee, ok := xrt.AsExecutionError(err)
		if !ok {
			return nil, nil, err
		}
		logger.Debug("tx rejected", "tx", t.Hash(), "err", ee)
		receipt, err := p.rejectedReceipt(st, env, t, ee)
		return receipt, nil, err
	}
	st.DiscardCheckpoint()

	receipt := &tx.Receipt{
		CumulativeGasUsed: executed.CumulativeGasUsed,
		LogBloom:          tx.LogsBloom(executed.Logs),
		Logs:              executed.Logs,
		Error:             xrt.ExceptionReceiptError(executed.Exception),
		AccountNonce:      executed.AccountNonce,
		TxHash:            t.Hash(),
	}
	if t.Action().Kind == tx.ActionCreate && executed.Exception == nil {
		sender, _ := t.Sender()
		addr := cita.CreateContractAddress(sender, executed.AccountNonce)
		receipt.ContractAddress = &addr
	}
	return receipt, executed, nil
}

// rejectedReceipt charges the sender of a rejected transaction and builds its receipt.
// The gas accounted is the whole provision for internal errors, otherwise the base
// transaction gas capped by the sender balance.
func (p *Processor) rejectedReceipt(st *state.State, env *xenv.EnvInfo, t *tx.Transaction, ee *xrt.ExecutionError) (*tx.Receipt, error) {
	sender, senderErr := t.Sender()

	var balance *uint256.Int
	if senderErr == nil {
		b, err := st.Balance(sender)
		if err != nil {
			return nil, err
		}
		balance = b
	} else {
		balance = new(uint256.Int)
	}

	gasUsed := t.Gas()
	if ee.Kind != xrt.KindInternal {
		gasUsed = cita.TxGas
		if balance.IsUint64() && balance.Uint64() < gasUsed {
			gasUsed = balance.Uint64()
		}
	}

	if p.config.EconomicalModel == cita.Charge && senderErr == nil {
		fee := new(uint256.Int).Mul(uint256.NewInt(gasUsed), t.GasPrice())
		if fee.Cmp(balance) > 0 {
			fee = balance
		}
		if err := st.SubBalance(sender, fee); err != nil {
			logger.Error("charge rejected tx sender", "tx", t.Hash(), "fee", fee, "err", err)
		} else {
			receiver := env.Author
			if p.config.FeeBackPlatform && !p.config.ChainOwner.IsZero() {
				receiver = p.config.ChainOwner
			}
			if err := st.AddBalance(receiver, fee); err != nil {
				return nil, err
			}
		}
	}

	return &tx.Receipt{
		CumulativeGasUsed: env.GasUsed + gasUsed,
		Error:             ee.ReceiptError(),
		AccountNonce:      new(uint256.Int),
		TxHash:            t.Hash(),
	}, nil
}

// recoverSenders warms the sender cache of txs in parallel.
func recoverSenders(txs tx.Transactions) {
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for _, t := range txs {
		g.Go(func() error {
			_, _ = t.Sender()
			return nil
		})
	}
	_ = g.Wait()
}
