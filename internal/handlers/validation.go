package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"ledger/internal/apperr"
	"ledger/internal/money"
)

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.InvalidAmount, err, err.Error())
	}
	if amount <= 0 {
		return 0, apperr.ErrInvalidAmount
	}
	return amount, nil
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

var errInvalidPayload = errors.New("invalid payload")

func decode(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return errInvalidPayload
	}
	return nil
}
