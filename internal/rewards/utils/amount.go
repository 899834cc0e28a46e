package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not positive numbers
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount reads a monetary amount sent either as a JSON number or as a
// numeric string. Empty input and a bare JSON zero count as absent: they
// yield a zero amount and no error.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, nil
	}

	s := string(raw)
	quoted := raw[0] == '"'
	if quoted {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, ErrInvalidAmount
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return decimal.Zero, nil
		}
	}

	amount, err := decimal.NewFromString(s)
	if err == nil && !quoted && amount.IsZero() {
		return decimal.Zero, nil
	}
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}
