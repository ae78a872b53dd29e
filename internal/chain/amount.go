package chain

import (
	"errors"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// ErrInvalidAmount marks unparseable or non-positive transfer amounts.
var ErrInvalidAmount = errors.New("chain: invalid amount")

var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseEther converts a decimal ETH string into wei. The amount must be a
// plain positive decimal with at most 18 fractional digits.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if !amountPattern.MatchString(s) {
		return nil, ErrInvalidAmount
	}
	value, ok := new(big.Rat).SetString(s)
	if !ok || value.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	wei := value.Mul(value, new(big.Rat).SetInt(big.NewInt(params.Ether)))
	if !wei.IsInt() {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(wei.Num()), nil
}

// FormatEther renders wei as a trimmed decimal ETH string.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	value := new(big.Rat).SetFrac(new(big.Int).Set(wei), big.NewInt(params.Ether))
	out := value.FloatString(18)
	out = strings.TrimRight(out, "0")
	out = strings.TrimSuffix(out, ".")
	if out == "" {
		out = "0"
	}
	return out
}
