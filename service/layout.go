// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package service

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
)

// Storage is the account storage service contracts write to.
type Storage interface {
	StorageAt(addr cita.Address, key cita.Bytes32) (cita.Bytes32, error)
	SetStorage(addr cita.Address, key, value cita.Bytes32) error
}

// SetBytes writes data at key as its length followed by 32-byte chunks at key+1, key+2 and so on.
// The last chunk is left aligned. Empty data writes nothing.
func SetBytes(st Storage, addr cita.Address, key cita.Bytes32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := st.SetStorage(addr, key, cita.Uint256ToBytes32(uint256.NewInt(uint64(len(data))))); err != nil {
		return err
	}
	pos := key.Uint256()
	for i := 0; i < len(data); i += 32 {
		pos.AddUint64(pos, 1)
		var chunk cita.Bytes32
		copy(chunk[:], data[i:min(i+32, len(data))])
		if err := st.SetStorage(addr, cita.Uint256ToBytes32(pos), chunk); err != nil {
			return err
		}
	}
	return nil
}

// GetBytes reads data written by SetBytes.
func GetBytes(st Storage, addr cita.Address, key cita.Bytes32) ([]byte, error) {
	lenSlot, err := st.StorageAt(addr, key)
	if err != nil {
		return nil, err
	}
	n := lenSlot.Uint256().Uint64()
	out := make([]byte, 0, n)
	pos := key.Uint256()
	for n > 0 {
		pos.AddUint64(pos, 1)
		v, err := st.StorageAt(addr, cita.Uint256ToBytes32(pos))
		if err != nil {
			return nil, err
		}
		take := min(n, 32)
		out = append(out, v[:take]...)
		n -= take
	}
	return out, nil
}
