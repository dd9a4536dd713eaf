package domain

import "math/big"

// MaxCursor returns the numerically larger of two history cursors. Cursor
// values are provider-issued decimal strings that may exceed uint64 range,
// so the comparison runs over math/big rather than a fixed-width integer.
// An empty or unparsable value loses to any valid one.
func MaxCursor(a, b string) string {
	ai, aok := new(big.Int).SetString(a, 10)
	bi, bok := new(big.Int).SetString(b, 10)

	switch {
	case !aok && !bok:
		return ""
	case !aok:
		return b
	case !bok:
		return a
	}

	if ai.Cmp(bi) >= 0 {
		return a
	}
	return b
}
