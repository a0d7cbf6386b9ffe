// Package utils provides small helpers shared across MarketBrief.
package utils

import (
	"fmt"
	"strings"
)

// MaxTickerLen is the longest symbol accepted. US listings top out well
// below this.
const MaxTickerLen = 10

// NormalizeTicker uppercases and trims a raw ticker string.
// "aapl " → "AAPL". It does not validate; see ValidateTicker.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateTicker checks that a normalized ticker is well-formed:
// non-empty, at most MaxTickerLen characters, and made of letters,
// digits, '.' or '-'. The dot covers share classes like BRK.B, the
// dash dual listings like BF-B.
func ValidateTicker(ticker string) error {
	if ticker == "" {
		return fmt.Errorf("ticker is required")
	}
	if len(ticker) > MaxTickerLen {
		return fmt.Errorf("ticker %q too long (max %d characters)", ticker, MaxTickerLen)
	}
	for _, r := range ticker {
		switch {
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return fmt.Errorf("ticker %q contains invalid character %q", ticker, r)
		}
	}
	return nil
}
