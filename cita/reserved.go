// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cita

// Reserved addresses.
var (
	// precompiled contracts
	EcrecoverAddress = BytesToAddress([]byte{0x01})
	Sha256Address    = BytesToAddress([]byte{0x02})
	Ripemd160Address = BytesToAddress([]byte{0x03})
	IdentityAddress  = BytesToAddress([]byte{0x04})

	// special transaction targets
	StoreAddress = MustParseAddress("ffffffffffffffffffffffffffffffffff010000")
	AbiAddress   = MustParseAddress("ffffffffffffffffffffffffffffffffff010001")
	AmendAddress = MustParseAddress("ffffffffffffffffffffffffffffffffff010002")

	// service contracts
	GoContractAddress = MustParseAddress("ffffffffffffffffffffffffffffffffff018000")
	GoContractMin     = MustParseAddress("ffffffffffffffffffffffffffffffffff018001")
	GoContractMax     = MustParseAddress("ffffffffffffffffffffffffffffffffff018fff")

	// native contracts
	NativeSimpleStorage = MustParseAddress("ffffffffffffffffffffffffffffffffff030000")

	// permission resources
	SendTxResource         = BytesToAddress([]byte{0x01})
	CreateContractResource = BytesToAddress([]byte{0x02})
	GroupManagement        = BytesToAddress([]byte{0x01, 0x32, 0x41, 0xc2})
)

// IsGoContract returns whether addr falls into the service contract range.
func IsGoContract(addr Address) bool {
	return addr.Cmp(GoContractMin) >= 0 && addr.Cmp(GoContractMax) <= 0
}
