// Package amount handles balances and transfer amounts as integer micro-units.
// All chain-facing values are *big.Int micro-units; record fields and API
// payloads carry decimal unit strings. Floating point is never used for money.
package amount

import (
	"fmt"
	"math/big"
	"strings"
)

// MicroPerUnit is the number of micro-units in one whole unit.
const MicroPerUnit = 1_000_000

var microPerUnit = big.NewInt(MicroPerUnit)

// Units returns n whole units as micro-units.
func Units(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), microPerUnit)
}

// Parse converts a decimal unit string ("15101", "0.01") to micro-units.
// At most six fractional digits are accepted.
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount: empty value")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return nil, fmt.Errorf("amount: %q has more than 6 fractional digits", s)
	}
	// Right-pad the fraction to micro precision.
	frac += strings.Repeat("0", 6-len(frac))
	out, ok := new(big.Int).SetString(whole+frac, 10)
	if !ok {
		return nil, fmt.Errorf("amount: invalid decimal %q", s)
	}
	if neg {
		out.Neg(out)
	}
	return out, nil
}

// MustParse is Parse for trusted constants; it panics on malformed input.
func MustParse(s string) *big.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Format renders micro-units as a decimal unit string with trailing zeros
// trimmed, the inverse of Parse.
func Format(micro *big.Int) string {
	if micro == nil {
		return "0"
	}
	sign := ""
	abs := new(big.Int).Abs(micro)
	if micro.Sign() < 0 {
		sign = "-"
	}
	q, r := new(big.Int).QuoRem(abs, microPerUnit, new(big.Int))
	if r.Sign() == 0 {
		return sign + q.String()
	}
	frac := strings.TrimRight(fmt.Sprintf("%06d", r), "0")
	return fmt.Sprintf("%s%s.%s", sign, q.String(), frac)
}
