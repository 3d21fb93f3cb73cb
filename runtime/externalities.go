// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/tx"
	"github.com/citahub/cita-executor/vm"
	"github.com/citahub/cita-executor/xenv"
)

// externalities implements vm.Ext for one execution frame.
type externalities struct {
	e            *Executive
	params       *vm.ActionParams
	substate     *state.Substate
	initContract bool
	tracer       Tracer
	vmTracer     VMTracer
	static       bool
}

var _ vm.Ext = (*externalities)(nil)

func (e *Executive) newExt(
	params *vm.ActionParams,
	substate *state.Substate,
	initContract bool,
	tracer Tracer,
	vmTracer VMTracer,
) *externalities {
	return &externalities{
		e:            e,
		params:       params,
		substate:     substate,
		initContract: initContract,
		tracer:       tracer,
		vmTracer:     vmTracer,
		static:       e.static || params.CallType == vm.CallTypeStaticCall,
	}
}

func (x *externalities) StorageAt(key cita.Bytes32) (cita.Bytes32, error) {
	return x.e.state.StorageAt(x.params.Address, key)
}

func (x *externalities) SetStorage(key, value cita.Bytes32) error {
	if x.static {
		return vm.ErrMutableCallInStaticContext
	}
	return x.e.state.SetStorage(x.params.Address, key, value)
}

func (x *externalities) Exists(addr cita.Address) (bool, error) {
	return x.e.state.Exists(addr)
}

func (x *externalities) ExistsAndNotNull(addr cita.Address) (bool, error) {
	return x.e.state.ExistsAndNotNull(addr)
}

func (x *externalities) OriginBalance() (*uint256.Int, error) {
	return x.e.state.Balance(x.params.Address)
}

func (x *externalities) Balance(addr cita.Address) (*uint256.Int, error) {
	return x.e.state.Balance(addr)
}

func (x *externalities) BlockHash(number uint64) cita.Bytes32 {
	return x.e.env.BlockHash(number)
}

func (x *externalities) Create(gas uint64, value *uint256.Int, code []byte) vm.ContractCreateResult {
	var (
		st     = x.e.state
		sender = x.params.Address
	)
	nonce, err := st.Nonce(sender)
	if err != nil {
		logger.Debug("create: load nonce", "address", sender, "err", err)
		return vm.ContractCreateResult{Status: vm.CreateFailed}
	}
	addr := cita.CreateContractAddress(sender, nonce)
	if value == nil {
		value = new(uint256.Int)
	}
	params := &vm.ActionParams{
		CodeAddress: addr,
		Address:     addr,
		Sender:      sender,
		Origin:      x.params.Origin,
		Gas:         gas,
		GasPrice:    x.params.GasPrice,
		Value:       vm.Transfer(value),
		Code:        code,
		CodeHash:    cita.Keccak256(code),
		CallType:    vm.CallTypeNone,
	}
	if !x.static {
		if err := st.IncNonce(sender); err != nil {
			logger.Debug("create: increase nonce", "address", sender, "err", err)
			return vm.ContractCreateResult{Status: vm.CreateFailed}
		}
	}

	child := x.e.fromParent(x.e.depth, x.static)
	res, err := child.Create(params, x.substate, x.tracer, x.vmTracer)
	switch {
	case err == nil && res.ApplyState:
		x.substate.ContractsCreated = append(x.substate.ContractsCreated, addr)
		return vm.ContractCreateResult{Status: vm.CreateSucceeded, Address: addr, GasLeft: res.GasLeft}
	case err == nil:
		return vm.ContractCreateResult{Status: vm.CreateReverted, GasLeft: res.GasLeft, Data: res.ReturnData}
	case errors.Is(err, vm.ErrMutableCallInStaticContext):
		return vm.ContractCreateResult{Status: vm.CreateFailedInStaticCall}
	default:
		return vm.ContractCreateResult{Status: vm.CreateFailed}
	}
}

func (x *externalities) Call(
	gas uint64,
	sender, receiver cita.Address,
	value *uint256.Int,
	data []byte,
	codeAddress cita.Address,
	callType vm.CallType,
) vm.MessageCallResult {
	st := x.e.state
	code, err := st.Code(codeAddress)
	if err != nil {
		return vm.MessageCallResult{Status: vm.CallFailed}
	}
	codeHash, err := st.CodeHash(codeAddress)
	if err != nil {
		return vm.MessageCallResult{Status: vm.CallFailed}
	}

	params := &vm.ActionParams{
		CodeAddress: codeAddress,
		Address:     receiver,
		Sender:      sender,
		Origin:      x.params.Origin,
		Gas:         gas,
		GasPrice:    x.params.GasPrice,
		Value:       vm.Apparent(x.params.Value.Value()),
		Code:        code,
		CodeHash:    codeHash,
		Data:        data,
		CallType:    callType,
	}
	if value != nil {
		params.Value = vm.Transfer(value)
	}

	child := x.e.fromParent(x.e.depth, x.static)
	res, err := child.Call(params, x.substate, x.tracer, x.vmTracer)
	switch {
	case err == nil && res.ApplyState:
		return vm.MessageCallResult{Status: vm.CallSucceeded, GasLeft: res.GasLeft, Data: res.ReturnData}
	case err == nil:
		return vm.MessageCallResult{Status: vm.CallReverted, GasLeft: res.GasLeft, Data: res.ReturnData}
	default:
		return vm.MessageCallResult{Status: vm.CallFailed}
	}
}

func (x *externalities) ExtCode(addr cita.Address) ([]byte, error) {
	return x.e.state.Code(addr)
}

func (x *externalities) ExtCodeSize(addr cita.Address) (int, error) {
	size, _, err := x.e.state.CodeSize(addr)
	return size, err
}

func (x *externalities) Log(topics []cita.Bytes32, data []byte) error {
	if x.static {
		return vm.ErrMutableCallInStaticContext
	}
	x.substate.Logs = append(x.substate.Logs, &tx.Log{
		Address: x.params.Address,
		Topics:  append([]cita.Bytes32(nil), topics...),
		Data:    append([]byte(nil), data...),
	})
	return nil
}

func (x *externalities) Ret(gas uint64, data []byte, applyState bool) (uint64, error) {
	if !x.initContract || !applyState {
		return gas, nil
	}
	cost := uint64(len(data)) * x.e.schedule.CreateDataGas
	if cost > gas || len(data) > x.e.schedule.CreateDataLimit {
		return 0, vm.ErrOutOfGas
	}
	if err := x.e.state.InitCode(x.params.Address, data); err != nil {
		return 0, vm.Internal(err)
	}
	return gas - cost, nil
}

func (x *externalities) Suicide(refundAddress cita.Address) error {
	if x.static {
		return vm.ErrMutableCallInStaticContext
	}
	addr := x.params.Address
	balance, err := x.e.state.Balance(addr)
	if err != nil {
		return err
	}
	x.tracer.TraceSuicide(addr, balance, refundAddress)
	x.substate.Suicides[addr] = struct{}{}
	return nil
}

func (x *externalities) Schedule() *vm.Schedule { return x.e.schedule }

func (x *externalities) EnvInfo() *xenv.EnvInfo { return x.e.env }

func (x *externalities) Depth() int { return x.e.depth }

func (x *externalities) IsStatic() bool { return x.static }

func (x *externalities) IncSStoreClears() {
	x.substate.SStoreClearsCount.AddUint64(&x.substate.SStoreClearsCount, 1)
}
