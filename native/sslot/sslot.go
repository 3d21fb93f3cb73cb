// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sslot lays out values in contract storage, the same way solidity does
// for value types, dynamic arrays, mappings and bytes.
package sslot

import (
	"github.com/holiman/uint256"

	"github.com/citahub/cita-executor/cita"
)

// Storage is the storage of one contract.
type Storage interface {
	StorageAt(key cita.Bytes32) (cita.Bytes32, error)
	SetStorage(key, value cita.Bytes32) error
}

// Scalar is a value at a fixed position.
type Scalar struct {
	position cita.Bytes32
}

// NewScalar creates a scalar at position.
func NewScalar(position cita.Bytes32) Scalar {
	return Scalar{position}
}

// Position returns the position of the scalar.
func (s Scalar) Position() cita.Bytes32 { return s.position }

// Get reads the value.
func (s Scalar) Get(st Storage) (*uint256.Int, error) {
	v, err := st.StorageAt(s.position)
	if err != nil {
		return nil, err
	}
	return v.Uint256(), nil
}

// Set writes the value.
func (s Scalar) Set(st Storage, value *uint256.Int) error {
	return st.SetStorage(s.position, cita.Uint256ToBytes32(value))
}

// SetBytes writes a byte string. Short strings share the slot with their length,
// longer ones keep the length in the slot and the data from keccak(position) on.
func (s Scalar) SetBytes(st Storage, data []byte) error {
	n := len(data)
	if n < 32 {
		var slot cita.Bytes32
		copy(slot[:], data)
		slot[31] = byte(n * 2)
		return st.SetStorage(s.position, slot)
	}
	if err := st.SetStorage(s.position, cita.Uint256ToBytes32(uint256.NewInt(uint64(n*2+1)))); err != nil {
		return err
	}
	key := cita.Keccak256(s.position[:]).Uint256()
	one := uint256.NewInt(1)
	for i := 0; i < n; i += 32 {
		var chunk cita.Bytes32
		copy(chunk[:], data[i:min(i+32, n)])
		if err := st.SetStorage(cita.Uint256ToBytes32(key), chunk); err != nil {
			return err
		}
		key.Add(key, one)
	}
	return nil
}

// GetBytes reads a byte string written by SetBytes. The result is never nil.
func (s Scalar) GetBytes(st Storage) ([]byte, error) {
	first, err := st.StorageAt(s.position)
	if err != nil {
		return nil, err
	}
	if first[31]%2 == 0 {
		data := make([]byte, first[31]/2)
		copy(data, first[:])
		return data, nil
	}
	n := int((first.Uint256().Uint64() - 1) / 2)
	key := cita.Keccak256(s.position[:]).Uint256()
	one := uint256.NewInt(1)
	data := make([]byte, 0, n)
	for n > 0 {
		v, err := st.StorageAt(cita.Uint256ToBytes32(key))
		if err != nil {
			return nil, err
		}
		take := min(n, 32)
		data = append(data, v[:take]...)
		n -= take
		key.Add(key, one)
	}
	return data, nil
}

// Array is a dynamic array, its length is at the position.
type Array struct {
	position cita.Bytes32
}

// NewArray creates an array at position.
func NewArray(position cita.Bytes32) Array {
	return Array{position}
}

// Elem returns the element at index.
func (a Array) Elem(index uint64) Scalar {
	key := cita.Keccak256(a.position[:]).Uint256()
	key.Add(key, uint256.NewInt(index))
	return Scalar{cita.Uint256ToBytes32(key)}
}

// Get reads the element at index.
func (a Array) Get(st Storage, index uint64) (*uint256.Int, error) {
	return a.Elem(index).Get(st)
}

// Set writes the element at index.
func (a Array) Set(st Storage, index uint64, value *uint256.Int) error {
	return a.Elem(index).Set(st, value)
}

// Len reads the length.
func (a Array) Len(st Storage) (uint64, error) {
	v, err := Scalar{a.position}.Get(st)
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

// SetLen writes the length.
func (a Array) SetLen(st Storage, n uint64) error {
	return Scalar{a.position}.Set(st, uint256.NewInt(n))
}

// Map is a mapping, values live at keccak(key ++ position).
type Map struct {
	position cita.Bytes32
}

// NewMap creates a map at position.
func NewMap(position cita.Bytes32) Map {
	return Map{position}
}

// Elem returns the value slot of key.
func (m Map) Elem(key []byte) Scalar {
	return Scalar{cita.Keccak256(key, m.position[:])}
}

// Get reads the value of key.
func (m Map) Get(st Storage, key []byte) (*uint256.Int, error) {
	return m.Elem(key).Get(st)
}

// Set writes the value of key.
func (m Map) Set(st Storage, key []byte, value *uint256.Int) error {
	return m.Elem(key).Set(st, value)
}
