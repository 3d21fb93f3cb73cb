// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/state"
	"github.com/citahub/cita-executor/vm"
)

// Amend operations, selected by the value of the amend call.
const (
	AmendABI     = 1
	AmendCode    = 2
	AmendKV      = 3
	AmendGetKV   = 4
	AmendBalance = 5
)

const (
	amendAddrLen   = 20
	amendPairWidth = 64 // key and value
)

func (e *Executive) callAmend(params *vm.ActionParams, substate *state.Substate) (*vm.FinalizationResult, error) {
	var (
		res *vm.FinalizationResult
		err error
	)
	if admin := e.config.SuperAdmin; admin == nil || *admin != params.Sender {
		err = &vm.InternalError{Msg: "no amend permission"}
	} else {
		var out []byte
		if out, err = e.amend(uint32(params.Value.Value().Uint64()), params.Data); err == nil {
			res = &vm.FinalizationResult{GasLeft: params.Gas, ReturnData: out, ApplyState: true}
		}
	}
	if err != nil {
		logger.Debug("amend failed", "sender", params.Sender, "err", err)
	}
	e.enactResult(res, err, substate, state.NewSubstate())
	return res, err
}

func (e *Executive) amend(op uint32, data []byte) ([]byte, error) {
	var (
		ok  bool
		err error
		msg = "Account doesn't exist"
	)
	switch op {
	case AmendABI:
		ok, err = e.transactSetABI(data)
	case AmendCode:
		ok, err = e.transactSetCode(data)
	case AmendKV:
		ok, err = e.transactSetKV(data)
	case AmendGetKV:
		if len(data) < amendAddrLen+32 {
			return nil, &vm.InternalError{Msg: "May be incomplete trie error"}
		}
		v, err := e.state.StorageAt(cita.BytesToAddress(data[:amendAddrLen]), cita.BytesToBytes32(data[amendAddrLen:amendAddrLen+32]))
		if err != nil {
			return nil, vm.Internal(err)
		}
		return v.Bytes(), nil
	case AmendBalance:
		ok, err = e.transactSetBalance(data)
		msg = "Account doesn't exist or incomplete trie error"
	default:
		return nil, nil
	}
	if err != nil {
		return nil, vm.Internal(err)
	}
	if !ok {
		return nil, &vm.InternalError{Msg: msg}
	}
	return nil, nil
}

// transactSetABI replaces the ABI of an existing account. data is the address followed by the ABI.
func (e *Executive) transactSetABI(data []byte) (bool, error) {
	if len(data) <= amendAddrLen {
		return false, nil
	}
	addr := cita.BytesToAddress(data[:amendAddrLen])
	exists, err := e.state.Exists(addr)
	if err != nil || !exists {
		return false, err
	}
	return true, e.state.ResetABI(addr, data[amendAddrLen:])
}

// transactSetCode replaces the code of an account. data is the address followed by the code.
func (e *Executive) transactSetCode(data []byte) (bool, error) {
	if len(data) <= amendAddrLen {
		return false, nil
	}
	return true, e.state.ResetCode(cita.BytesToAddress(data[:amendAddrLen]), data[amendAddrLen:])
}

// transactSetKV writes storage of an existing account. data is the address followed by
// key value pairs. Trailing bytes not making a whole pair are ignored.
func (e *Executive) transactSetKV(data []byte) (bool, error) {
	if len(data) < amendAddrLen+amendPairWidth {
		return false, nil
	}
	addr := cita.BytesToAddress(data[:amendAddrLen])
	exists, err := e.state.Exists(addr)
	if err != nil || !exists {
		return false, err
	}
	n := (len(data) - amendAddrLen) / amendPairWidth
	for i := 0; i < n; i++ {
		base := amendAddrLen + amendPairWidth*i
		key := cita.BytesToBytes32(data[base : base+32])
		value := cita.BytesToBytes32(data[base+32 : base+amendPairWidth])
		if err := e.state.SetStorage(addr, key, value); err != nil {
			return false, err
		}
	}
	return true, nil
}

// transactSetBalance sets the balance of an account. data is the address followed by the balance.
func (e *Executive) transactSetBalance(data []byte) (bool, error) {
	if len(data) < amendAddrLen+32 {
		return false, nil
	}
	addr := cita.BytesToAddress(data[:amendAddrLen])
	target := new(uint256.Int).SetBytes(data[amendAddrLen : amendAddrLen+32])
	now, err := e.state.Balance(addr)
	if err != nil {
		return false, err
	}
	if now.Gt(target) {
		return true, e.state.SubBalance(addr, new(uint256.Int).Sub(now, target))
	}
	return true, e.state.AddBalance(addr, new(uint256.Int).Sub(target, now))
}
