// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package service keeps contracts served by external processes, and talks to them.
package service

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/kv"
	"github.com/citahub/cita-executor/log"
)

var logger = log.WithContext("pkg", "service")

// ConnectInfo is where a service contract is served.
type ConnectInfo struct {
	IP      string
	Port    uint16
	Address string
}

// Endpoint returns the http endpoint of the service.
func (c *ConnectInfo) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", c.IP, c.Port)
}

// ContractState is the persisted record of a service contract.
type ContractState struct {
	ConnInfo ConnectInfo
	// block number the contract was enabled at, zero if never
	Height uint64
}

// Registry holds registered service contracts. A contract is registered disabled,
// and gets enabled by the go-create transaction that initializes it.
type Registry struct {
	mu       sync.RWMutex
	disabled map[cita.Address]*ContractState
	enabled  map[cita.Address]*ContractState
	store    kv.Store
}

// NewRegistry creates a registry. Enabled contracts are persisted in store, which may be nil.
func NewRegistry(store kv.Store) *Registry {
	return &Registry{
		disabled: make(map[cita.Address]*ContractState),
		enabled:  make(map[cita.Address]*ContractState),
		store:    store,
	}
}

// Register adds a disabled contract.
func (r *Registry) Register(addr cita.Address, ip string, port uint16, height uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[addr] = &ContractState{
		ConnInfo: ConnectInfo{IP: ip, Port: port},
		Height:   height,
	}
}

// Find returns a copy of the contract state in the enabled or disabled set.
func (r *Registry) Find(addr cita.Address, enabled bool) (*ContractState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.disabled
	if enabled {
		m = r.enabled
	}
	cs, ok := m[addr]
	if !ok {
		return nil, false
	}
	c := *cs
	return &c, true
}

// Enable moves a registered contract into the enabled set.
func (r *Registry) Enable(addr cita.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.disabled[addr]
	if !ok {
		logger.Warn("can't enable unregistered service contract", "address", addr)
		return false
	}
	delete(r.disabled, addr)
	r.enabled[addr] = cs
	return true
}

// SetEnableHeight updates the height of an enabled contract and persists it.
func (r *Registry) SetEnableHeight(addr cita.Address, height uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.enabled[addr]
	if !ok {
		return nil
	}
	cs.Height = height
	cs.ConnInfo.Address = addr.String()
	return r.save(addr, cs)
}

func (r *Registry) save(addr cita.Address, cs *ContractState) error {
	if r.store == nil {
		return nil
	}
	data, err := rlp.EncodeToBytes(cs)
	if err != nil {
		return err
	}
	return errors.Wrap(r.store.Put(addr[:], data), "save service contract")
}

// Load restores persisted contracts into the enabled set.
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	it := r.store.Iterate(kv.Range{})
	defer it.Release()
	for it.Next() {
		var cs ContractState
		if err := rlp.DecodeBytes(it.Value(), &cs); err != nil {
			return errors.Wrap(err, "decode service contract")
		}
		r.enabled[cita.BytesToAddress(it.Key())] = &cs
	}
	return it.Error()
}
