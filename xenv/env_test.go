// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package xenv

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/citahub/cita-executor/cita"
)

func TestBlockHash(t *testing.T) {
	hashes := make([]cita.Bytes32, LastHashesLen)
	for i := range hashes {
		hashes[i] = cita.BytesToBytes32([]byte{byte(i + 1)})
	}
	env := &EnvInfo{Number: 1000, LastHashes: hashes}

	assert.Equal(t, hashes[0], env.BlockHash(999), "parent")
	assert.Equal(t, hashes[255], env.BlockHash(744))
	assert.Equal(t, cita.Bytes32{}, env.BlockHash(743), "too old")
	assert.Equal(t, cita.Bytes32{}, env.BlockHash(1000), "current")
	assert.Equal(t, cita.Bytes32{}, env.BlockHash(2000), "future")

	short := &EnvInfo{Number: 10, LastHashes: hashes[:3]}
	assert.Equal(t, hashes[2], short.BlockHash(7))
	assert.Equal(t, cita.Bytes32{}, short.BlockHash(6), "beyond known hashes")
	assert.Equal(t, cita.Bytes32{}, short.BlockHash(0))
}
