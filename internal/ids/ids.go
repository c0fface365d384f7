package ids

import (
	"encoding/hex"
	"math/big"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const AccountNumberLength = 16

var accountNumberPattern = regexp.MustCompile(`^\d{16}$`)

type Generator interface {
	AccountID() string
	AccountNumber() string
	TransactionID() string
}

type UUIDGenerator struct{}

func NewGenerator() UUIDGenerator {
	return UUIDGenerator{}
}

func (UUIDGenerator) AccountID() string {
	return uuid.NewString()
}

// AccountNumber takes the leading 16 digits of a random UUID read as an integer.
func (UUIDGenerator) AccountNumber() string {
	for {
		id := uuid.New()
		digits := new(big.Int).SetBytes(id[:]).String()
		if len(digits) >= AccountNumberLength {
			return digits[:AccountNumberLength]
		}
	}
}

func (UUIDGenerator) TransactionID() string {
	id := uuid.New()
	return "TRX-" + strings.ToUpper(hex.EncodeToString(id[:8]))
}

func ValidAccountNumber(number string) bool {
	return accountNumberPattern.MatchString(number)
}
