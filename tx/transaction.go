// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"crypto/ecdsa"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/citahub/cita-executor/cita"
)

// Transaction is an immutable tx type.
type Transaction struct {
	body body

	cache struct {
		hash   atomic.Pointer[cita.Bytes32]
		sender atomic.Pointer[cita.Address]
	}
}

// body describes details of a tx.
type body struct {
	Nonce           string
	GasPrice        *uint256.Int
	Gas             uint64
	To              *cita.Address `rlp:"nil"`
	Value           *uint256.Int
	Data            []byte
	ValidUntilBlock uint64
	ChainID         uint32
	Version         uint32
	Signature       []byte
}

func (b *body) unsigned() []any {
	return []any{
		b.Nonce,
		b.GasPrice,
		b.Gas,
		b.To,
		b.Value,
		b.Data,
		b.ValidUntilBlock,
		b.ChainID,
		b.Version,
	}
}

// Hash returns hash of tx.
func (t *Transaction) Hash() cita.Bytes32 {
	if cached := t.cache.hash.Load(); cached != nil {
		return *cached
	}
	data, err := rlp.EncodeToBytes(&t.body)
	if err != nil {
		panic(err)
	}
	h := cita.Keccak256(data)
	t.cache.hash.Store(&h)
	return h
}

// SigningHash returns hash of tx excludes signature.
func (t *Transaction) SigningHash() cita.Bytes32 {
	data, err := rlp.EncodeToBytes(t.body.unsigned())
	if err != nil {
		panic(err)
	}
	return cita.Keccak256(data)
}

// Nonce returns the client chosen nonce string, used for replay protection by the pool.
func (t *Transaction) Nonce() string { return t.body.Nonce }

// GasPrice returns a copy of the gas price.
func (t *Transaction) GasPrice() *uint256.Int { return orZero(t.body.GasPrice) }

// Gas returns gas provision for this tx.
func (t *Transaction) Gas() uint64 { return t.body.Gas }

// To returns the recipient, nil for contract creation.
func (t *Transaction) To() *cita.Address {
	if t.body.To == nil {
		return nil
	}
	cpy := *t.body.To
	return &cpy
}

// Action returns the decoded recipient.
func (t *Transaction) Action() Action { return ActionOf(t.body.To) }

// Value returns a copy of the value to transfer.
func (t *Transaction) Value() *uint256.Int { return orZero(t.body.Value) }

// Data returns a copy of the data.
func (t *Transaction) Data() []byte { return append([]byte(nil), t.body.Data...) }

// ValidUntilBlock returns the last block the tx may be included in.
func (t *Transaction) ValidUntilBlock() uint64 { return t.body.ValidUntilBlock }

// ChainID returns the id of the chain the tx is bound to.
func (t *Transaction) ChainID() uint32 { return t.body.ChainID }

// Version returns the tx format version.
func (t *Transaction) Version() uint32 { return t.body.Version }

// Signature returns signature.
func (t *Transaction) Signature() []byte { return append([]byte(nil), t.body.Signature...) }

// WithSignature create a new tx with signature set.
func (t *Transaction) WithSignature(sig []byte) *Transaction {
	newTx := Transaction{body: t.body}
	newTx.body.Signature = append([]byte(nil), sig...)
	return &newTx
}

// Sender recovers the signer of the tx. The result is cached.
func (t *Transaction) Sender() (cita.Address, error) {
	if cached := t.cache.sender.Load(); cached != nil {
		return *cached, nil
	}
	if len(t.body.Signature) != crypto.SignatureLength {
		return cita.Address{}, errors.New("invalid signature length")
	}
	h := t.SigningHash()
	pub, err := crypto.SigToPub(h[:], t.body.Signature)
	if err != nil {
		return cita.Address{}, errors.Wrap(err, "recover sender")
	}
	addr := cita.Address(crypto.PubkeyToAddress(*pub))
	t.cache.sender.Store(&addr)
	return addr, nil
}

// EncodeRLP implements rlp.Encoder
func (t *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &t.body)
}

// DecodeRLP implements rlp.Decoder
func (t *Transaction) DecodeRLP(s *rlp.Stream) error {
	var body body
	if err := s.Decode(&body); err != nil {
		return err
	}
	*t = Transaction{body: body}
	return nil
}

func (t *Transaction) String() string {
	var to string
	if t.body.To == nil {
		to = "nil"
	} else {
		to = t.body.To.String()
	}
	return fmt.Sprintf(`
	Tx(%v)
	Action:          %v
	To:              %v
	Nonce:           %v
	GasPrice:        %v
	Gas:             %v
	Value:           %v
	Data:            %d bytes
	ValidUntilBlock: %v
	ChainID:         %v
	Version:         %v`, t.Hash(), t.Action().Kind, to, t.body.Nonce, t.GasPrice(), t.body.Gas,
		t.Value(), len(t.body.Data), t.body.ValidUntilBlock, t.body.ChainID, t.body.Version)
}

// Sign signs the tx with the private key.
func Sign(tx *Transaction, pk *ecdsa.PrivateKey) (*Transaction, error) {
	h := tx.SigningHash()
	sig, err := crypto.Sign(h[:], pk)
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}
	return tx.WithSignature(sig), nil
}

// MustSign signs the tx and panics on failure.
func MustSign(tx *Transaction, pk *ecdsa.PrivateKey) *Transaction {
	signed, err := Sign(tx, pk)
	if err != nil {
		panic(err)
	}
	return signed
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
