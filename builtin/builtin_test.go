// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package builtin

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citahub/cita-executor/cita"
)

func TestLinear(t *testing.T) {
	l := Linear{Base: 10, Word: 20}
	assert.Equal(t, uint64(10), l.Cost(nil))
	assert.Equal(t, uint64(30), l.Cost(make([]byte, 1)))
	assert.Equal(t, uint64(30), l.Cost(make([]byte, 32)))
	assert.Equal(t, uint64(50), l.Cost(make([]byte, 33)))
}

func TestIdentity(t *testing.T) {
	c, ok := NewRegistry().Get(cita.IdentityAddress)
	require.True(t, ok)
	in := []byte{0, 1, 2, 3}
	out := c.Execute(in)
	assert.Equal(t, in, out)
	out[0] = 9
	assert.Equal(t, byte(0), in[0], "output must not alias input")
	assert.Equal(t, uint64(18), c.Cost(in))
}

func TestHashes(t *testing.T) {
	r := NewRegistry()

	sha, _ := r.Get(cita.Sha256Address)
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		hex.EncodeToString(sha.Execute(nil)))

	rip, _ := r.Get(cita.Ripemd160Address)
	assert.Equal(t,
		"0000000000000000000000009c1185a5c5e9fc54612808977ee8f548b2258d31",
		hex.EncodeToString(rip.Execute(nil)))
	assert.Equal(t, uint64(600), rip.Cost(nil))
}

func TestEcrecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash := crypto.Keccak256([]byte("cita"))
	sig, err := crypto.Sign(hash, key)
	require.NoError(t, err)

	input := make([]byte, 128)
	copy(input, hash)
	input[63] = sig[64] + 27
	copy(input[64:], sig[:64])

	c, _ := NewRegistry().Get(cita.EcrecoverAddress)
	out := c.Execute(input)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	assert.Equal(t, cita.BytesToBytes32(addr[:]).Bytes(), out)

	input[63] = 29
	assert.Empty(t, c.Execute(input), "bad v")

	input[63] = sig[64] + 27
	input[40] = 1
	assert.Empty(t, c.Execute(input), "v must be left padded with zeros")

	assert.Empty(t, c.Execute(hash), "short input")
}

func TestActivation(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Active(cita.Sha256Address, 0)
	assert.True(t, ok)

	require.True(t, r.SetActivation(cita.Sha256Address, 100))
	_, ok = r.Active(cita.Sha256Address, 99)
	assert.False(t, ok)
	_, ok = r.Active(cita.Sha256Address, 100)
	assert.True(t, ok)

	_, ok = r.Active(cita.StoreAddress, 0)
	assert.False(t, ok)
	assert.False(t, r.SetActivation(cita.StoreAddress, 1))
}
