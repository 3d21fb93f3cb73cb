// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package permission keeps which accounts and groups may use which contract functions.
package permission

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/citahub/cita-executor/cita"
)

// Resource is a function of a contract. A zero Func means the whole contract.
type Resource struct {
	Contract cita.Address `yaml:"contract" json:"contract"`
	Func     Selector     `yaml:"func" json:"func"`
}

// Selector is the 4-byte function selector.
type Selector [4]byte

// SelectorOf returns the selector prefix of call data. Short data is right padded with zeros.
func SelectorOf(data []byte) (s Selector) {
	copy(s[:], data)
	return
}

func (s Selector) String() string {
	return hexutil.Encode(s[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(text []byte) error {
	str := string(text)
	if !strings.HasPrefix(str, "0x") && !strings.HasPrefix(str, "0X") {
		str = "0x" + str
	}
	b, err := hexutil.Decode(str)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", text, err)
	}
	if len(b) != len(s) {
		return fmt.Errorf("invalid selector %q", text)
	}
	copy(s[:], b)
	return nil
}

// Manager answers permission queries.
type Manager struct {
	accounts map[cita.Address][]Resource
	groups   map[cita.Address][]cita.Address // group => members
}

// New creates an empty manager.
func New() *Manager {
	return &Manager{
		accounts: make(map[cita.Address][]Resource),
		groups:   make(map[cita.Address][]cita.Address),
	}
}

// Grant gives resources to an account or group.
func (m *Manager) Grant(account cita.Address, resources ...Resource) {
	for _, r := range resources {
		if !slices.Contains(m.accounts[account], r) {
			m.accounts[account] = append(m.accounts[account], r)
		}
	}
}

// Revoke takes resources away from an account or group.
func (m *Manager) Revoke(account cita.Address, resources ...Resource) {
	m.accounts[account] = slices.DeleteFunc(m.accounts[account], func(r Resource) bool {
		return slices.Contains(resources, r)
	})
}

// AddMembers puts accounts into group.
func (m *Manager) AddMembers(group cita.Address, accounts ...cita.Address) {
	for _, a := range accounts {
		if !slices.Contains(m.groups[group], a) {
			m.groups[group] = append(m.groups[group], a)
		}
	}
}

// Resources returns the resources held directly by account.
func (m *Manager) Resources(account cita.Address) []Resource {
	return slices.Clone(m.accounts[account])
}

// ContainsResource returns whether account holds the resource directly.
func (m *Manager) ContainsResource(account, contract cita.Address, fn Selector) bool {
	return slices.Contains(m.accounts[account], Resource{contract, fn})
}

// Groups returns the groups account belongs to, in address order.
func (m *Manager) Groups(account cita.Address) []cita.Address {
	var groups []cita.Address
	for g, members := range m.groups {
		if slices.Contains(members, account) {
			groups = append(groups, g)
		}
	}
	slices.SortFunc(groups, cita.Address.Cmp)
	return groups
}

// HasResource returns whether account holds the resource, directly or through one of its groups.
func (m *Manager) HasResource(account, contract cita.Address, fn Selector) bool {
	if m.ContainsResource(account, contract, fn) {
		return true
	}
	for _, g := range m.Groups(account) {
		if m.ContainsResource(g, contract, fn) {
			return true
		}
	}
	return false
}
