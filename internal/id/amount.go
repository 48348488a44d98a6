package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

// Accepts plain decimals plus the bare-dot forms ".5" and "1.". A lone "."
// carries no digits and is rejected.
var decimalPattern = regexp.MustCompile(`^([0-9]+(\.[0-9]*)?|\.[0-9]+)$`)

var one = big.NewInt(1)

// ToMinorUnits converts a human decimal quantity into the integer minor-unit
// string for an asset with the given decimal precision. Fractional digits
// beyond the precision are rounded half-to-even so repeated conversions are
// deterministic across platforms.
func ToMinorUnits(human string, decimals int) (string, error) {
	if decimals < 0 {
		return "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	trimmed := strings.TrimSpace(human)
	if !decimalPattern.MatchString(trimmed) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q: expected a non-negative decimal like 1.23", human))
	}

	intPart := trimmed
	fracPart := ""
	if idx := strings.IndexByte(trimmed, '.'); idx >= 0 {
		intPart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}

	kept := fracPart
	rest := ""
	if len(fracPart) > decimals {
		kept = fracPart[:decimals]
		rest = fracPart[decimals:]
	}
	kept = kept + strings.Repeat("0", decimals-len(kept))

	n, ok := new(big.Int).SetString(stripLeadingZeros(intPart+kept), 10)
	if !ok {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q", human))
	}
	if roundsUpHalfEven(n, rest) {
		n.Add(n, one)
	}
	return n.String(), nil
}

// roundsUpHalfEven decides whether the discarded fractional tail pushes the
// kept integer up by one, using round-half-to-even on an exact half.
func roundsUpHalfEven(kept *big.Int, rest string) bool {
	if rest == "" {
		return false
	}
	first := rest[0]
	remainder := strings.Trim(rest[1:], "0")
	switch {
	case first > '5':
		return true
	case first < '5':
		return false
	case remainder != "":
		// Strictly above the halfway point.
		return true
	default:
		// Exactly half: round to the nearest even integer.
		return kept.Bit(0) == 1
	}
}

// ToHuman converts an integer minor-unit string back into its decimal form,
// trimming trailing fractional zeros. It is the exact inverse of ToMinorUnits
// for values within the asset's precision.
func ToHuman(minorUnits string, decimals int) (string, error) {
	if decimals < 0 {
		return "", clierr.New(clierr.CodeUsage, "decimals must be >= 0")
	}
	trimmed := strings.TrimSpace(minorUnits)
	n, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || n.Sign() < 0 {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid minor-unit amount %q", minorUnits))
	}
	if decimals == 0 {
		return n.String(), nil
	}

	s := n.String()
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart, nil
	}
	return intPart + "." + fracPart, nil
}

func stripLeadingZeros(s string) string {
	out := strings.TrimLeft(s, "0")
	if out == "" {
		return "0"
	}
	return out
}
