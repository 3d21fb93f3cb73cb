// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package vm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
)

// CallType is the kind of a message call. CallTypeNone is used for contract creation.
type CallType uint8

const (
	CallTypeNone CallType = iota
	CallTypeCall
	CallTypeCallCode
	CallTypeDelegateCall
	CallTypeStaticCall
)

func (t CallType) String() string {
	switch t {
	case CallTypeNone:
		return "none"
	case CallTypeCall:
		return "call"
	case CallTypeCallCode:
		return "callcode"
	case CallTypeDelegateCall:
		return "delegatecall"
	case CallTypeStaticCall:
		return "staticcall"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// ActionValue is the value of a call. A transfer value moves balance, an apparent value
// is only what the callee observes, as for delegate calls.
type ActionValue struct {
	value    uint256.Int
	transfer bool
}

// Transfer makes a value that moves balance.
func Transfer(v *uint256.Int) ActionValue {
	av := ActionValue{transfer: true}
	if v != nil {
		av.value.Set(v)
	}
	return av
}

// Apparent makes a value that is visible to the callee but never moved.
func Apparent(v *uint256.Int) ActionValue {
	var av ActionValue
	if v != nil {
		av.value.Set(v)
	}
	return av
}

// IsTransfer returns whether the value moves balance.
func (v ActionValue) IsTransfer() bool { return v.transfer }

// Value returns a copy of the amount.
func (v ActionValue) Value() *uint256.Int { return v.value.Clone() }

func (v ActionValue) String() string {
	if v.transfer {
		return "transfer(" + v.value.Dec() + ")"
	}
	return "apparent(" + v.value.Dec() + ")"
}

// ActionParams describes one call or create invocation.
type ActionParams struct {
	// address of the code to run, differs from Address for delegate calls and call codes
	CodeAddress cita.Address
	// receiving address, whose storage is used
	Address  cita.Address
	Sender   cita.Address
	Origin   cita.Address
	Gas      uint64
	GasPrice *uint256.Int
	Value    ActionValue
	// nil when there's no code
	Code     []byte
	CodeHash cita.Bytes32
	Data     []byte
	CallType CallType
}

// HasCode returns whether there's code to run.
func (p *ActionParams) HasCode() bool {
	return len(p.Code) > 0
}

// Copy returns a copy sharing code and data.
func (p *ActionParams) Copy() *ActionParams {
	c := *p
	if p.GasPrice != nil {
		c.GasPrice = p.GasPrice.Clone()
	}
	return &c
}

func (p *ActionParams) String() string {
	return fmt.Sprintf(`ActionParams(
	CodeAddress: %v
	Address:     %v
	Sender:      %v
	Origin:      %v
	Gas:         %v
	Value:       %v
	CodeSize:    %v
	DataSize:    %v
	CallType:    %v
)`, p.CodeAddress, p.Address, p.Sender, p.Origin, p.Gas, p.Value, len(p.Code), len(p.Data), p.CallType)
}
