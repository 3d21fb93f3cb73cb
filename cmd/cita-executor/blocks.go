// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/genesis"
	"github.com/citahub/cita-executor/tx"
)

// milliseconds
const blockInterval = 3000

// blockFile is a YAML list of blocks to apply on the head, in order.
type blockFile struct {
	Blocks []blockSpec `yaml:"blocks"`
}

type blockSpec struct {
	// milliseconds, zero means one interval after the parent
	Timestamp uint64        `yaml:"timestamp"`
	Proposer  *cita.Address `yaml:"proposer"`
	// zero keeps the parent gas limit
	GasLimit     uint64   `yaml:"gasLimit"`
	Transactions []txSpec `yaml:"transactions"`
}

// txSpec is either a raw signed transaction, or fields signed with key or a dev account.
type txSpec struct {
	Raw hexutil.Bytes `yaml:"raw"`

	Key hexutil.Bytes `yaml:"key"`
	Dev *int          `yaml:"dev"`

	Nonce           string                `yaml:"nonce"`
	To              *cita.Address         `yaml:"to"`
	Value           *math.HexOrDecimal256 `yaml:"value"`
	Gas             uint64                `yaml:"gas"`
	GasPrice        *math.HexOrDecimal256 `yaml:"gasPrice"`
	Data            hexutil.Bytes         `yaml:"data"`
	ValidUntilBlock uint64                `yaml:"validUntilBlock"`
	ChainID         uint32                `yaml:"chainId"`
	Version         uint32                `yaml:"version"`
}

func loadBlockFile(path string) (*blockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read block file")
	}
	var f blockFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode block file")
	}
	return &f, nil
}

// build makes the block following parent. The default proposer is used when none is given.
func (s *blockSpec) build(parent *block.Header, proposer cita.Address) (*block.Block, error) {
	gasLimit := s.GasLimit
	if gasLimit == 0 {
		gasLimit = parent.GasLimit()
	}
	if s.Proposer != nil {
		proposer = *s.Proposer
	}
	timestamp := s.Timestamp
	if timestamp == 0 {
		timestamp = parent.Timestamp() + blockInterval
	}
	if timestamp < parent.Timestamp() {
		return nil, errors.New("timestamp earlier than parent")
	}

	builder := new(block.Builder).
		ParentHash(parent.Hash()).
		Number(parent.Number() + 1).
		Timestamp(timestamp).
		Proposer(proposer).
		GasLimit(gasLimit)
	for i := range s.Transactions {
		t, err := s.Transactions[i].build()
		if err != nil {
			return nil, errors.Wrapf(err, "tx %d", i)
		}
		builder.Transaction(t)
	}
	return builder.Build(), nil
}

func (s *txSpec) build() (*tx.Transaction, error) {
	if len(s.Raw) > 0 {
		var t tx.Transaction
		if err := rlp.DecodeBytes(s.Raw, &t); err != nil {
			return nil, errors.Wrap(err, "decode raw tx")
		}
		return &t, nil
	}

	key, err := s.signer()
	if err != nil {
		return nil, err
	}
	value, err := toUint256(s.Value)
	if err != nil {
		return nil, errors.Wrap(err, "value")
	}
	gasPrice, err := toUint256(s.GasPrice)
	if err != nil {
		return nil, errors.Wrap(err, "gasPrice")
	}

	unsigned := new(tx.Builder).
		Nonce(s.Nonce).
		To(s.To).
		Value(value).
		Gas(s.Gas).
		GasPrice(gasPrice).
		Data(s.Data).
		ValidUntilBlock(s.ValidUntilBlock).
		ChainID(s.ChainID).
		Version(s.Version).
		Build()
	return tx.Sign(unsigned, key)
}

func (s *txSpec) signer() (*ecdsa.PrivateKey, error) {
	switch {
	case len(s.Key) > 0 && s.Dev != nil:
		return nil, errors.New("both key and dev given")
	case len(s.Key) > 0:
		return crypto.ToECDSA(s.Key)
	case s.Dev != nil:
		accs := genesis.DevAccounts()
		if *s.Dev < 0 || *s.Dev >= len(accs) {
			return nil, fmt.Errorf("dev account index %d out of range", *s.Dev)
		}
		return accs[*s.Dev].PrivateKey, nil
	}
	return nil, errors.New("one of raw, key or dev required")
}

func toUint256(v *math.HexOrDecimal256) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	b := (*big.Int)(v)
	if b.Sign() < 0 {
		return nil, errors.New("negative")
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return nil, errors.New("overflows 256 bits")
	}
	return u, nil
}
