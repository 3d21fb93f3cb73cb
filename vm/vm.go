// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package vm defines the contract between the executive and pluggable contract runners.
package vm

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/xenv"
)

// FinalizationResult is the outcome of a finished execution.
type FinalizationResult struct {
	GasLeft    uint64
	ReturnData []byte
	// false if the execution ended with REVERT, changes must be discarded
	ApplyState bool
}

// GasLeft is what a VM returns. When NeedsReturn is set, the data still has to be
// handed back through Ext.Ret, which may charge for it.
type GasLeft struct {
	Gas         uint64
	Data        []byte
	NeedsReturn bool
	ApplyState  bool
}

// Known makes a GasLeft without return data.
func Known(gas uint64) GasLeft {
	return GasLeft{Gas: gas}
}

// NeedsReturn makes a GasLeft with return data.
func NeedsReturn(gas uint64, data []byte, applyState bool) GasLeft {
	return GasLeft{Gas: gas, Data: data, NeedsReturn: true, ApplyState: applyState}
}

// Finalize turns the gas left into a FinalizationResult using ext.
func (g GasLeft) Finalize(ext Ext) (*FinalizationResult, error) {
	if !g.NeedsReturn {
		return &FinalizationResult{GasLeft: g.Gas, ApplyState: true}, nil
	}
	gas, err := ext.Ret(g.Gas, g.Data, g.ApplyState)
	if err != nil {
		return nil, err
	}
	return &FinalizationResult{GasLeft: gas, ReturnData: g.Data, ApplyState: g.ApplyState}, nil
}

// VM runs code.
type VM interface {
	Exec(params *ActionParams, ext Ext) (GasLeft, error)
}

// Factory creates a VM for an execution with the given gas.
type Factory interface {
	Create(gas uint64) VM
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(gas uint64) VM

// Create implements Factory.
func (f FactoryFunc) Create(gas uint64) VM { return f(gas) }

// ExecFunc adapts a function to VM.
type ExecFunc func(params *ActionParams, ext Ext) (GasLeft, error)

// Exec implements VM.
func (f ExecFunc) Exec(params *ActionParams, ext Ext) (GasLeft, error) { return f(params, ext) }

// Unsupported is a factory whose VMs reject any code.
var Unsupported Factory = FactoryFunc(func(uint64) VM {
	return ExecFunc(func(*ActionParams, Ext) (GasLeft, error) {
		return GasLeft{}, &InternalError{"no bytecode interpreter configured"}
	})
})

// CreateStatus is the outcome kind of a nested create.
type CreateStatus uint8

const (
	CreateSucceeded CreateStatus = iota
	CreateReverted
	CreateFailed
	CreateFailedInStaticCall
)

// ContractCreateResult is returned by Ext.Create.
type ContractCreateResult struct {
	Status  CreateStatus
	Address cita.Address // valid on success
	GasLeft uint64       // valid on success or revert
	Data    []byte       // revert data
}

// CallStatus is the outcome kind of a nested call.
type CallStatus uint8

const (
	CallSucceeded CallStatus = iota
	CallReverted
	CallFailed
)

// MessageCallResult is returned by Ext.Call.
type MessageCallResult struct {
	Status  CallStatus
	GasLeft uint64 // valid on success or revert
	Data    []byte
}

// Ext is the view of the world the running code gets.
type Ext interface {
	// StorageAt reads the storage of the current account.
	StorageAt(key cita.Bytes32) (cita.Bytes32, error)
	// SetStorage writes the storage of the current account.
	SetStorage(key, value cita.Bytes32) error
	Exists(addr cita.Address) (bool, error)
	ExistsAndNotNull(addr cita.Address) (bool, error)
	OriginBalance() (*uint256.Int, error)
	Balance(addr cita.Address) (*uint256.Int, error)
	BlockHash(number uint64) cita.Bytes32

	// Create creates a contract with code as init code.
	Create(gas uint64, value *uint256.Int, code []byte) ContractCreateResult
	// Call makes a nested message call. A nil value means the value of the current frame is passed
	// as apparent value.
	Call(gas uint64, sender, receiver cita.Address, value *uint256.Int, data []byte, codeAddress cita.Address, callType CallType) MessageCallResult

	ExtCode(addr cita.Address) ([]byte, error)
	ExtCodeSize(addr cita.Address) (int, error)

	Log(topics []cita.Bytes32, data []byte) error
	// Ret hands back the return data. For contract creation it deploys data as code.
	Ret(gas uint64, data []byte, applyState bool) (uint64, error)
	Suicide(refundAddress cita.Address) error

	Schedule() *Schedule
	EnvInfo() *xenv.EnvInfo
	Depth() int
	IncSStoreClears()
	IsStatic() bool
}
