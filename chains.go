package goSession

import (
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultSupportedChains is the chain allow-list used when
// [ChainConfig.Supported] is empty: Ethereum, Optimism, Polygon, Base,
// Arbitrum One, Base Sepolia and Sepolia.
var DefaultSupportedChains = []int64{1, 10, 137, 8453, 42161, 84532, 11155111}

// ValidateAddress checks that address is a 0x-prefixed 20-byte hex string.
// Mixed case is accepted; checksums are not enforced.
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return validationError(ErrInvalidAddress)
	}
	if !common.IsHexAddress(address) {
		return validationError(ErrInvalidAddress)
	}
	return nil
}

// normalizeAddress returns the canonical lowercase form of a valid address.
func normalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(strings.TrimSpace(address)).Hex())
}

type chainSet struct {
	ids []int64
}

func newChainSet(ids []int64) chainSet {
	if len(ids) == 0 {
		ids = DefaultSupportedChains
	}
	out := slices.Clone(ids)
	slices.Sort(out)
	return chainSet{ids: slices.Compact(out)}
}

func (c chainSet) validate(chainID int64) error {
	if _, ok := slices.BinarySearch(c.ids, chainID); !ok {
		return validationError(ErrUnsupportedChain)
	}
	return nil
}
