// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime executes transactions against the state.
package runtime

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/permission"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/vm"
	"github.com/citahub/cita-executor/xenv"
)

var logger = log.WithContext("pkg", "runtime")

// TransactOptions select the tracers of a transaction.
type TransactOptions struct {
	Tracing   bool
	VMTracing bool
}

// Executed is the result of an included transaction.
type Executed struct {
	// nil, or the exception that reverted the top level call
	Exception error
	Gas       uint64
	GasUsed   uint64
	Refunded  uint64
	// block gas used up to and including this transaction
	CumulativeGasUsed uint64
	Logs              []*tx.Log
	ContractsCreated  []cita.Address
	Output            []byte
	Trace             []*FlatTrace
	VMTrace           *VMTrace
	// sender nonce before the transaction
	AccountNonce *uint256.Int
}

// Executive runs transactions of a block. Nested calls run on child executives one level deeper.
type Executive struct {
	state    *state.State
	env      *xenv.EnvInfo
	config   *Config
	deps     *Deps
	schedule *vm.Schedule
	depth    int
	static   bool
}

// New creates a top level executive.
func New(st *state.State, env *xenv.EnvInfo, config *Config, deps Deps) *Executive {
	if config == nil {
		config = DefaultConfig()
	}
	return &Executive{
		state:    st,
		env:      env,
		config:   config,
		deps:     deps.withDefaults(),
		schedule: vm.NewScheduleV1(),
	}
}

// fromParent creates the executive for a call made at parentDepth.
func (e *Executive) fromParent(parentDepth int, static bool) *Executive {
	child := *e
	child.depth = parentDepth + 1
	child.static = static
	return &child
}

// State returns the state the executive works on.
func (e *Executive) State() *state.State { return e.state }

// Depth returns the call depth, zero at the top level.
func (e *Executive) Depth() int { return e.depth }

// Transact executes a transaction. The sender nonce is incremented even when the transaction
// is rejected afterwards, so the caller must drop the state changes of a rejected transaction.
func (e *Executive) Transact(t *tx.Transaction, options TransactOptions) (*Executed, error) {
	var (
		tracer   Tracer   = NoopTracer{}
		vmTracer VMTracer = NoopVMTracer{}
	)
	if options.Tracing {
		tracer = &ExecutiveTracer{}
	}
	if options.VMTracing {
		vmTracer = NewExecutiveVMTracer()
	}
	executed, err := e.transact(t, tracer, vmTracer)
	switch {
	case err != nil:
		countTx("rejected")
	case executed.Exception != nil:
		countTx("exception")
	default:
		countTx("ok")
	}
	return executed, err
}

func (e *Executive) transact(t *tx.Transaction, tracer Tracer, vmTracer VMTracer) (*Executed, error) {
	sender, err := t.Sender()
	if err != nil {
		return nil, malformed(err.Error())
	}
	nonce, err := e.state.Nonce(sender)
	if err != nil {
		return nil, internalError(err)
	}
	logger.Trace("transact", "tx", t.Hash(), "sender", sender, "nonce", nonce)
	if err := e.state.IncNonce(sender); err != nil {
		return nil, internalError(err)
	}

	if err := e.checkPermission(sender, t); err != nil {
		return nil, err
	}

	var (
		action  = t.Action()
		data    = t.Data()
		baseGas = cita.TxGas
	)
	if action.Kind == tx.ActionCreate {
		baseGas = cita.TxCreateGas
	}
	if t.Version() > 2 {
		baseGas += uint64(len(data)) * cita.TxDataNonZero
	}
	if !sender.IsZero() && t.Gas() < baseGas {
		return nil, &ExecutionError{
			Kind:     KindNotEnoughBaseGas,
			Required: new(big.Int).SetUint64(baseGas),
			Got:      new(big.Int).SetUint64(t.Gas()),
		}
	}
	if e.config.CheckOptions.Quota {
		if err := e.checkQuota(sender, t); err != nil {
			return nil, err
		}
	}

	switch action.Kind {
	case tx.ActionAbiStore:
		ok, err := e.transactSetABI(data)
		if err != nil {
			return nil, internalError(err)
		}
		if !ok {
			return nil, malformed("Account doesn't exist")
		}
	case tx.ActionAmendData:
		if admin := e.config.SuperAdmin; admin == nil || *admin != sender {
			return nil, rejected(KindNoTransactionPermission)
		}
	}

	if err := e.prepaid(sender, t); err != nil {
		return nil, err
	}

	var initGas uint64
	if t.Gas() > baseGas {
		initGas = t.Gas() - baseGas
	}

	var (
		substate = state.NewSubstate()
		result   *vm.FinalizationResult
		execErr  error
		output   []byte
	)
	switch action.Kind {
	case tx.ActionStore, tx.ActionAbiStore:
		cost := uint64(len(data)) * cita.CreateDataGas
		if cost > initGas {
			return nil, &ExecutionError{
				Kind:     KindNotEnoughBaseGas,
				Required: new(big.Int).SetUint64(baseGas + cost),
				Got:      new(big.Int).SetUint64(t.Gas()),
			}
		}
		result = &vm.FinalizationResult{GasLeft: initGas - cost, ApplyState: true}
	case tx.ActionCreate:
		addr := cita.CreateContractAddress(sender, nonce)
		params := &vm.ActionParams{
			CodeAddress: addr,
			Address:     addr,
			Sender:      sender,
			Origin:      sender,
			Gas:         initGas,
			GasPrice:    t.GasPrice(),
			Value:       vm.Transfer(t.Value()),
			Code:        data,
			CodeHash:    cita.Keccak256(data),
			CallType:    vm.CallTypeNone,
		}
		result, execErr = e.Create(params, substate, tracer, vmTracer)
	default:
		to := action.To
		value := vm.Transfer(t.Value())
		switch action.Kind {
		case tx.ActionGoCreate:
			to = cita.GoContractAddress
		case tx.ActionAmendData:
			// the value selects the amend operation, nothing moves
			to = cita.AmendAddress
			value = vm.Apparent(t.Value())
		}
		code, err := e.state.Code(to)
		if err != nil {
			return nil, internalError(err)
		}
		codeHash, err := e.state.CodeHash(to)
		if err != nil {
			return nil, internalError(err)
		}
		params := &vm.ActionParams{
			CodeAddress: to,
			Address:     to,
			Sender:      sender,
			Origin:      sender,
			Gas:         initGas,
			GasPrice:    t.GasPrice(),
			Value:       value,
			Code:        code,
			CodeHash:    codeHash,
			Data:        data,
			CallType:    vm.CallTypeCall,
		}
		result, execErr = e.Call(params, substate, tracer, vmTracer)
		if result != nil {
			output = result.ReturnData
		}
	}

	executed, err := e.finalize(t, sender, substate, result, execErr)
	if err != nil {
		return nil, err
	}
	executed.AccountNonce = nonce
	executed.Output = output
	executed.Trace = tracer.Traces()
	executed.VMTrace = vmTracer.Drain()
	return executed, nil
}

func (e *Executive) checkPermission(sender cita.Address, t *tx.Transaction) error {
	if sender.IsZero() {
		return nil
	}
	var (
		opts  = e.config.CheckOptions
		perms = e.deps.Permissions
	)
	if opts.SendTxPermission && !perms.HasResource(sender, cita.SendTxResource, permission.Selector{}) {
		return rejected(KindNoTransactionPermission)
	}
	action := t.Action()
	switch action.Kind {
	case tx.ActionCreate:
		if opts.CreateContractPermission && !perms.HasResource(sender, cita.CreateContractResource, permission.Selector{}) {
			return rejected(KindNoContractPermission)
		}
	case tx.ActionCall:
		if opts.CallPermission {
			return e.checkCallPermission(sender, action.To, t.Data())
		}
	}
	return nil
}

func (e *Executive) checkCallPermission(sender, to cita.Address, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 4 {
		return malformed("The length of transaction data is less than four bytes")
	}
	var (
		perms = e.deps.Permissions
		fn    = permission.SelectorOf(data)
	)
	if to == cita.GroupManagement {
		if len(data) < 36 {
			return malformed("Data should have at least one parameter")
		}
		param := cita.BytesToAddress(data[16:36])
		if !perms.ContainsResource(sender, to, fn) && !perms.ContainsResource(param, to, fn) {
			return rejected(KindNoCallPermission)
		}
	}
	if !perms.HasResource(sender, to, fn) {
		return rejected(KindNoCallPermission)
	}
	return nil
}

func (e *Executive) checkQuota(sender cita.Address, t *tx.Transaction) error {
	if sender.IsZero() {
		return nil
	}
	if e.env.GasUsed+t.Gas() > e.env.GasLimit {
		return &ExecutionError{
			Kind: KindBlockGasLimitReached,
			Msg:  fmt.Sprintf("gas limit %d, gas used %d, gas %d", e.env.GasLimit, e.env.GasUsed, t.Gas()),
		}
	}
	if t.Gas() > e.env.AccountGasLimit {
		return &ExecutionError{
			Kind: KindAccountGasLimitReached,
			Msg:  fmt.Sprintf("gas limit %d, gas %d", e.env.AccountGasLimit, t.Gas()),
		}
	}
	return nil
}

// prepaid takes the gas cost from the sender in the charge model.
func (e *Executive) prepaid(sender cita.Address, t *tx.Transaction) error {
	if !e.config.paymentRequired() {
		return nil
	}
	balance, err := e.state.Balance(sender)
	if err != nil {
		return internalError(err)
	}
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(t.Gas()), t.GasPrice().ToBig())
	total := new(big.Int).Add(gasCost, t.Value().ToBig())
	if balance.ToBig().Cmp(total) < 0 {
		return &ExecutionError{
			Kind:     KindNotEnoughCash,
			Required: total,
			Got:      balance.ToBig(),
		}
	}
	cost, _ := uint256.FromBig(gasCost)
	if err := e.state.SubBalance(sender, cost); err != nil {
		return internalError(err)
	}
	return nil
}

// finalize refunds gas, pays fees and removes dead accounts.
func (e *Executive) finalize(
	t *tx.Transaction,
	sender cita.Address,
	substate *state.Substate,
	result *vm.FinalizationResult,
	execErr error,
) (*Executed, error) {
	var (
		gas      = t.Gas()
		gasLeft  uint64
		refunded uint64
	)
	if execErr == nil {
		sstoreRefunds := new(uint256.Int).Mul(&substate.SStoreClearsCount, uint256.NewInt(e.schedule.SstoreRefund))
		suicideRefunds := uint256.NewInt(e.schedule.SuicideRefund * uint64(len(substate.Suicides)))
		bound := sstoreRefunds.Add(sstoreRefunds, suicideRefunds)
		refunded = (gas - result.GasLeft) / 2
		if bound.IsUint64() && bound.Uint64() < refunded {
			refunded = bound.Uint64()
		}
		gasLeft = result.GasLeft + refunded
	}
	gasUsed := gas - gasLeft

	logger.Trace("finalize", "gas", gas, "gasLeft", gasLeft, "refunded", refunded, "gasUsed", gasUsed)

	if e.config.paymentRequired() {
		price := t.GasPrice()
		refundValue := new(uint256.Int).Mul(uint256.NewInt(gasLeft), price)
		if err := e.state.AddBalance(sender, refundValue); err != nil {
			return nil, internalError(err)
		}
		fees := new(uint256.Int).Mul(uint256.NewInt(gasUsed), price)
		if err := e.state.AddBalance(e.config.feeReceiver(e.env.Author), fees); err != nil {
			return nil, internalError(err)
		}
	}

	for addr := range substate.Suicides {
		e.state.KillAccount(addr)
	}
	e.state.KillGarbage(substate.Garbage)

	if execErr != nil {
		if vm.IsInternal(execErr) {
			return nil, &ExecutionError{Kind: KindInternal, Msg: execErr.Error()}
		}
		return &Executed{
			Exception:         execErr,
			Gas:               gas,
			GasUsed:           gas,
			CumulativeGasUsed: e.env.GasUsed + gas,
		}, nil
	}

	executed := &Executed{
		Gas:               gas,
		GasUsed:           gasUsed,
		Refunded:          refunded,
		CumulativeGasUsed: e.env.GasUsed + gasUsed,
		Logs:              substate.Logs,
		ContractsCreated:  substate.ContractsCreated,
	}
	if !result.ApplyState {
		executed.Exception = vm.ErrReverted
	}
	return executed, nil
}
