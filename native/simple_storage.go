// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package native

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/native/sslot"
	"github.com/citahub/cita-executor/vm"
)

// SimpleStorage method selectors.
const (
	SigInit      uint32 = 0
	SigUintSet   uint32 = 0xaa91543e
	SigUintGet   uint32 = 0x832b4580
	SigStringSet uint32 = 0xc9615770
	SigStringGet uint32 = 0xe3135d14
	SigArraySet  uint32 = 0x118b229c
	SigArrayGet  uint32 = 0x180a4bbf
	SigMapSet    uint32 = 0xaaf27175
	SigMapGet    uint32 = 0xc567dff6
)

var (
	uintValue   = sslot.NewScalar(cita.BytesToBytes32([]byte{0}))
	stringValue = sslot.NewScalar(cita.BytesToBytes32([]byte{1}))
	arrayValue  = sslot.NewArray(cita.BytesToBytes32([]byte{2}))
	mapValue    = sslot.NewMap(cita.BytesToBytes32([]byte{3}))
)

// SimpleStorage keeps a uint, a string, an array and a map, with ABI encoded
// getters and setters.
type SimpleStorage struct{}

// Exec implements Contract.
func (s *SimpleStorage) Exec(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error) {
	if len(params.Data) < 4 {
		return vm.GasLeft{}, vm.ErrOutOfGas
	}
	args := abiArgs(params.Data[4:])

	switch selector(params.Data) {
	case SigInit:
		return vm.Known(params.Gas), nil
	case SigUintSet:
		v, err := args.word(0)
		if err != nil {
			return vm.GasLeft{}, err
		}
		if err := uintValue.Set(ext, v); err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.Known(params.Gas), nil
	case SigUintGet:
		v, err := uintValue.Get(ext)
		if err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.NeedsReturn(params.Gas, cita.Uint256ToBytes32(v).Bytes(), true), nil
	case SigStringSet:
		str, err := args.bytes(0)
		if err != nil {
			return vm.GasLeft{}, err
		}
		if err := stringValue.SetBytes(ext, str); err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.Known(params.Gas), nil
	case SigStringGet:
		str, err := stringValue.GetBytes(ext)
		if err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.NeedsReturn(params.Gas, encodeBytes(str), true), nil
	case SigArraySet:
		index, err := args.word(0)
		if err != nil {
			return vm.GasLeft{}, err
		}
		v, err := args.word(1)
		if err != nil {
			return vm.GasLeft{}, err
		}
		if err := arrayValue.Set(ext, index.Uint64(), v); err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.Known(params.Gas), nil
	case SigArrayGet:
		index, err := args.word(0)
		if err != nil {
			return vm.GasLeft{}, err
		}
		v, err := arrayValue.Get(ext, index.Uint64())
		if err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.NeedsReturn(params.Gas, cita.Uint256ToBytes32(v).Bytes(), true), nil
	case SigMapSet:
		if len(args) < 64 {
			return vm.GasLeft{}, vm.ErrOutOfBounds
		}
		v, _ := args.word(1)
		if err := mapValue.Set(ext, args[:32], v); err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.Known(params.Gas), nil
	case SigMapGet:
		if len(args) < 32 {
			return vm.GasLeft{}, vm.ErrOutOfBounds
		}
		v, err := mapValue.Get(ext, args[:32])
		if err != nil {
			return vm.GasLeft{}, vm.Internal(err)
		}
		return vm.NeedsReturn(params.Gas, cita.Uint256ToBytes32(v).Bytes(), true), nil
	}
	return vm.GasLeft{}, vm.ErrOutOfGas
}

// abiArgs is the ABI encoded arguments of a call.
type abiArgs []byte

func (a abiArgs) word(i int) (*uint256.Int, error) {
	off := i * 32
	if off+32 > len(a) {
		return nil, vm.ErrOutOfBounds
	}
	return new(uint256.Int).SetBytes32(a[off : off+32]), nil
}

// bytes decodes the dynamic bytes argument whose offset is the i-th word.
func (a abiArgs) bytes(i int) ([]byte, error) {
	off, err := a.word(i)
	if err != nil {
		return nil, err
	}
	if !off.IsUint64() || off.Uint64() > uint64(len(a)) {
		return nil, vm.ErrOutOfBounds
	}
	rest := a[off.Uint64():]
	n, err := rest.word(0)
	if err != nil {
		return nil, err
	}
	if !n.IsUint64() || n.Uint64() > uint64(len(rest)-32) {
		return nil, vm.ErrOutOfBounds
	}
	return append([]byte(nil), rest[32:32+n.Uint64()]...), nil
}

// encodeBytes ABI encodes data as the single return value.
func encodeBytes(data []byte) []byte {
	padded := (len(data) + 31) / 32 * 32
	out := make([]byte, 64+padded)
	out[31] = 32
	copy(out[32:64], cita.Uint256ToBytes32(uint256.NewInt(uint64(len(data)))).Bytes())
	copy(out[64:], data)
	return out
}
