package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/RustLabx/rstoken/lib/block/types"
)

// Ethereum ERC20 token methodID (keccak-256 of the function name and arguments)
const (
	ERC20transfer256     = "a9059cbb" // transfer(address,uint256)
	ERC20transferFrom256 = "23b872dd" // transferFrom(address,address,uint256)
	ERC20transfer        = "6cb927d8" // transfer(address,uint)
	ERC20transferFrom    = "a978501e" // transferFrom(address,address,uint)
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],
	 "name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],
	 "name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

var erc20, errERC20 = abi.JSON(strings.NewReader(erc20ABI)) //nolint:gochecknoglobals // parsed once

// TransferData returns the calldata of an ERC20 transfer(to, amount), amount being in the token's smallest unit.
func TransferData(to string, amount *big.Int) ([]byte, error) {
	if errERC20 != nil {
		return nil, fmt.Errorf("erc20 abi: %w", errERC20)
	}

	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidAddress, to)
	}

	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: transfer amount", types.ErrInvalidAmount)
	}

	return erc20.Pack("transfer", common.HexToAddress(to), amount)
}

// isTransfer reports whether the hex method id (without 0x) is an ERC20 transfer or transferFrom.
func isTransfer(method string) bool {
	switch method {
	case ERC20transfer, ERC20transfer256, ERC20transferFrom, ERC20transferFrom256:
		return true
	}

	return false
}
