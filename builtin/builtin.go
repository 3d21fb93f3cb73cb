// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package builtin implements the precompiled contracts.
package builtin

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck

	"github.com/citahub/cita-executor/cita"
)

// Pricer prices an input.
type Pricer interface {
	Cost(input []byte) uint64
}

// Linear charges Base plus Word for every started 32-byte word.
type Linear struct {
	Base uint64
	Word uint64
}

// Cost implements Pricer.
func (l Linear) Cost(input []byte) uint64 {
	return l.Base + l.Word*uint64((len(input)+31)/32)
}

type impl func(input []byte) []byte

// Contract is a precompiled contract.
type Contract struct {
	Name       string
	pricer     Pricer
	run        impl
	activateAt uint64
}

// Cost returns the gas needed to run input.
func (c *Contract) Cost(input []byte) uint64 {
	return c.pricer.Cost(input)
}

// Execute runs input and returns the output.
func (c *Contract) Execute(input []byte) []byte {
	return c.run(input)
}

// IsActive returns whether the contract is callable at block number n.
func (c *Contract) IsActive(n uint64) bool {
	return n >= c.activateAt
}

// Registry maps addresses to precompiled contracts.
type Registry struct {
	contracts map[cita.Address]*Contract
}

// NewRegistry creates the registry of the four standard precompiles, active from genesis.
func NewRegistry() *Registry {
	return &Registry{
		contracts: map[cita.Address]*Contract{
			cita.EcrecoverAddress: {Name: "ecrecover", pricer: Linear{3000, 0}, run: ecrecover},
			cita.Sha256Address:    {Name: "sha256", pricer: Linear{60, 12}, run: sha256hash},
			cita.Ripemd160Address: {Name: "ripemd160", pricer: Linear{600, 120}, run: ripemd160hash},
			cita.IdentityAddress:  {Name: "identity", pricer: Linear{15, 3}, run: identity},
		},
	}
}

// Get returns the contract at addr.
func (r *Registry) Get(addr cita.Address) (*Contract, bool) {
	c, ok := r.contracts[addr]
	return c, ok
}

// Active returns the contract at addr, if it's active at block number n.
func (r *Registry) Active(addr cita.Address, n uint64) (*Contract, bool) {
	c, ok := r.contracts[addr]
	if !ok || !c.IsActive(n) {
		return nil, false
	}
	return c, true
}

// SetActivation changes the activation block number of the contract at addr.
func (r *Registry) SetActivation(addr cita.Address, n uint64) bool {
	c, ok := r.contracts[addr]
	if ok {
		c.activateAt = n
	}
	return ok
}

func identity(input []byte) []byte {
	return append([]byte(nil), input...)
}

// ecrecover returns the left padded address recovered from [hash, v, r, s], or nothing
// if the signature is invalid.
func ecrecover(in []byte) []byte {
	var input [128]byte
	copy(input[:], in)

	v := input[32:64]
	for _, b := range v[:31] {
		if b != 0 {
			return nil
		}
	}
	if v[31] != 27 && v[31] != 28 {
		return nil
	}
	bit := v[31] - 27

	r := new(big.Int).SetBytes(input[64:96])
	s := new(big.Int).SetBytes(input[96:128])
	if !crypto.ValidateSignatureValues(bit, r, s, false) {
		return nil
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, input[64:128])
	sig[64] = bit
	pub, err := crypto.SigToPub(input[:32], sig)
	if err != nil {
		return nil
	}
	addr := crypto.PubkeyToAddress(*pub)
	return cita.BytesToBytes32(addr[:]).Bytes()
}

func sha256hash(input []byte) []byte {
	h := sha256.Sum256(input)
	return h[:]
}

func ripemd160hash(input []byte) []byte {
	h := ripemd160.New()
	h.Write(input)
	return cita.BytesToBytes32(h.Sum(nil)).Bytes()
}
