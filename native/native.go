// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package native hosts contracts implemented in Go and bound to fixed addresses.
package native

import (
	"encoding/binary"
	"sync"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/vm"
)

// Contract is a native contract. Every call gets a fresh instance.
type Contract interface {
	Exec(params *vm.ActionParams, ext vm.Ext) (vm.GasLeft, error)
}

// Factory creates native contracts by address.
type Factory struct {
	mu        sync.RWMutex
	contracts map[cita.Address]func() Contract
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{contracts: make(map[cita.Address]func() Contract)}
}

// NewDefaultFactory creates a factory with the built-in native contracts registered.
func NewDefaultFactory() *Factory {
	f := NewFactory()
	f.Register(cita.NativeSimpleStorage, func() Contract { return new(SimpleStorage) })
	return f
}

// Register binds a contract constructor to addr.
func (f *Factory) Register(addr cita.Address, newContract func() Contract) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts[addr] = newContract
}

// Unregister removes the contract at addr.
func (f *Factory) Unregister(addr cita.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.contracts, addr)
}

// NewContract returns a contract instance for addr, or nil.
func (f *Factory) NewContract(addr cita.Address) Contract {
	f.mu.RLock()
	newContract, ok := f.contracts[addr]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	return newContract()
}

// selector returns the first 4 bytes of data as big-endian integer.
// Data shorter than 4 bytes is right padded with zeros.
func selector(data []byte) uint32 {
	var b [4]byte
	copy(b[:], data)
	return binary.BigEndian.Uint32(b[:])
}
