// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/citahub/cita-executor/builtin"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/native"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/vm"
)

// Call runs a message call. It leaves refunds and suicides to the caller.
// The call target is resolved in order: native contract, amend, service contract,
// builtin, then code.
func (e *Executive) Call(params *vm.ActionParams, substate *state.Substate, tracer Tracer, vmTracer VMTracer) (*vm.FinalizationResult, error) {
	logger.Trace("call", "depth", e.depth, "static", e.static, "params", params)

	if (params.CallType == vm.CallTypeStaticCall || (params.CallType == vm.CallTypeCall && e.static)) && !params.Value.Value().IsZero() {
		return nil, vm.ErrMutableCallInStaticContext
	}

	e.state.Checkpoint()

	if params.Value.IsTransfer() && e.config.paymentRequired() {
		if err := e.state.TransferBalance(params.Sender, params.Address, params.Value.Value()); err != nil {
			e.state.RevertToCheckpoint()
			return nil, vm.Internal(err)
		}
		substate.Garbage[params.Sender] = struct{}{}
		substate.Garbage[params.Address] = struct{}{}
	}

	if contract := e.deps.Natives.NewContract(params.CodeAddress); contract != nil {
		return e.callNative(contract, params, substate, tracer)
	}
	if params.CodeAddress == cita.AmendAddress {
		return e.callAmend(params, substate)
	}
	if res, ok, err := e.callService(params, substate); ok {
		return res, err
	}
	if contract, ok := e.deps.Builtins.Active(params.CodeAddress, e.env.Number); ok {
		return e.callBuiltin(contract, params, tracer)
	}
	return e.callCode(params, substate, tracer, vmTracer)
}

func (e *Executive) callNative(contract native.Contract, params *vm.ActionParams, substate *state.Substate, tracer Tracer) (*vm.FinalizationResult, error) {
	if cita.NativeCallGas > params.Gas {
		e.state.RevertToCheckpoint()
		tracer.TraceFailedCall(params, nil, vm.ErrOutOfGas)
		return nil, vm.ErrOutOfGas
	}
	p := params.Copy()
	p.Gas -= cita.NativeCallGas

	unconfirmed := state.NewSubstate()
	ext := e.newExt(p, unconfirmed, false, NoopTracer{}, NoopVMTracer{})
	gasLeft, err := contract.Exec(p, ext)
	res, err := finalizeVM(gasLeft, err, ext)
	if err != nil {
		tracer.TraceFailedCall(params, nil, err)
	} else {
		tracer.TraceCall(params, params.Gas-res.GasLeft, res.ReturnData, nil)
	}
	e.enactResult(res, err, substate, unconfirmed)
	return res, err
}

func (e *Executive) callBuiltin(contract *builtin.Contract, params *vm.ActionParams, tracer Tracer) (*vm.FinalizationResult, error) {
	cost := contract.Cost(params.Data)
	if cost > params.Gas {
		e.state.RevertToCheckpoint()
		tracer.TraceFailedCall(params, nil, vm.ErrOutOfGas)
		return nil, vm.ErrOutOfGas
	}
	output := contract.Execute(params.Data)
	e.state.DiscardCheckpoint()

	// only top level builtin calls are traced
	if e.depth == 0 {
		tracer.TraceCall(params, cost, output, nil)
	}
	return &vm.FinalizationResult{
		GasLeft:    params.Gas - cost,
		ReturnData: output,
		ApplyState: true,
	}, nil
}

func (e *Executive) callCode(params *vm.ActionParams, substate *state.Substate, tracer Tracer, vmTracer VMTracer) (*vm.FinalizationResult, error) {
	if !params.HasCode() {
		// plain value transfer
		e.state.DiscardCheckpoint()
		tracer.TraceCall(params, 0, nil, nil)
		return &vm.FinalizationResult{GasLeft: params.Gas, ApplyState: true}, nil
	}

	var (
		unconfirmed = state.NewSubstate()
		subtracer   = tracer.Subtracer()
		subVMTracer = vmTracer.PrepareSubtrace(params.Code)
	)
	res, err := e.execVM(params, unconfirmed, false, subtracer, subVMTracer)
	vmTracer.DoneSubtrace(subVMTracer)

	if err != nil {
		tracer.TraceFailedCall(params, subtracer.Traces(), err)
	} else {
		tracer.TraceCall(params, params.Gas-res.GasLeft, res.ReturnData, subtracer.Traces())
	}
	e.enactResult(res, err, substate, unconfirmed)
	return res, err
}

// Create deploys a contract by running params.Code as init code.
// It leaves refunds and suicides to the caller.
func (e *Executive) Create(params *vm.ActionParams, substate *state.Substate, tracer Tracer, vmTracer VMTracer) (*vm.FinalizationResult, error) {
	collides, err := e.state.ExistsAndHasCodeOrNonce(params.Address)
	if err != nil {
		return nil, vm.Internal(err)
	}
	if collides {
		return nil, vm.ErrOutOfGas
	}

	logger.Trace("create", "depth", e.depth, "static", e.static, "params", params)

	if params.CallType == vm.CallTypeStaticCall || e.static {
		tracer.TraceFailedCreate(params, nil, vm.ErrMutableCallInStaticContext)
		return nil, vm.ErrMutableCallInStaticContext
	}

	e.state.Checkpoint()

	balance, err := e.state.Balance(params.Address)
	if err != nil {
		e.state.RevertToCheckpoint()
		return nil, vm.Internal(err)
	}
	if params.Value.IsTransfer() && e.config.paymentRequired() {
		value := params.Value.Value()
		if err := e.state.SubBalance(params.Sender, value); err != nil {
			e.state.RevertToCheckpoint()
			return nil, vm.Internal(err)
		}
		balance = new(uint256.Int).Add(balance, value)
	}
	e.state.NewContract(params.Address, balance, new(uint256.Int))

	var (
		unconfirmed = state.NewSubstate()
		subtracer   = tracer.Subtracer()
		subVMTracer = vmTracer.PrepareSubtrace(params.Code)
	)
	res, err := e.execVM(params, unconfirmed, true, subtracer, subVMTracer)
	vmTracer.DoneSubtrace(subVMTracer)

	if err != nil {
		tracer.TraceFailedCreate(params, subtracer.Traces(), err)
	} else {
		tracer.TraceCreate(params, params.Gas-res.GasLeft, res.ReturnData, subtracer.Traces())
	}
	e.enactResult(res, err, substate, unconfirmed)
	return res, err
}

// execVM runs the code of params. Every depthThreshold levels the execution continues
// on a new goroutine, which starts with a fresh stack. The caller waits for it.
func (e *Executive) execVM(
	params *vm.ActionParams,
	unconfirmed *state.Substate,
	initContract bool,
	tracer Tracer,
	vmTracer VMTracer,
) (*vm.FinalizationResult, error) {
	run := func() (*vm.FinalizationResult, error) {
		ext := e.newExt(params, unconfirmed, initContract, tracer, vmTracer)
		gasLeft, err := e.deps.VMFactory.Create(params.Gas).Exec(params, ext)
		return finalizeVM(gasLeft, err, ext)
	}

	if (e.depth+1)%e.config.depthThreshold() != 0 {
		return run()
	}

	metricDepthHandOff().Add(1)
	logger.Debug("moving execution to a new goroutine", "depth", e.depth)

	var (
		g   errgroup.Group
		res *vm.FinalizationResult
	)
	g.Go(func() (err error) {
		res, err = run()
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func finalizeVM(gasLeft vm.GasLeft, err error, ext vm.Ext) (*vm.FinalizationResult, error) {
	if err != nil {
		return nil, normalizeVMError(err)
	}
	res, err := gasLeft.Finalize(ext)
	if err != nil {
		return nil, normalizeVMError(err)
	}
	return res, nil
}

// shouldRevert tells whether the outcome of a call rolls back its changes.
// Internal errors keep the changes, the transaction gets rejected as a whole later.
func shouldRevert(res *vm.FinalizationResult, err error) bool {
	var (
		badJump    *vm.BadJumpDestinationError
		badInstr   *vm.BadInstructionError
		underflow  *vm.StackUnderflowError
		outOfStack *vm.OutOfStackError
	)
	switch {
	case err == nil:
		return !res.ApplyState
	case errors.Is(err, vm.ErrOutOfGas),
		errors.As(err, &badJump),
		errors.As(err, &badInstr),
		errors.As(err, &underflow),
		errors.As(err, &outOfStack),
		errors.Is(err, vm.ErrMutableCallInStaticContext),
		errors.Is(err, vm.ErrOutOfBounds),
		errors.Is(err, vm.ErrReverted):
		return true
	}
	return false
}

// normalizeVMError turns errors outside the VM error set into internal errors.
func normalizeVMError(err error) error {
	if shouldRevert(nil, err) {
		return err
	}
	return vm.Internal(err)
}

// enactResult closes the checkpoint of a call, keeping the unconfirmed substate
// only if the changes are kept.
func (e *Executive) enactResult(res *vm.FinalizationResult, err error, substate, unconfirmed *state.Substate) {
	if shouldRevert(res, err) {
		e.state.RevertToCheckpoint()
		return
	}
	e.state.DiscardCheckpoint()
	substate.Accrue(unconfirmed)
}
