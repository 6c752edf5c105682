package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// ID prefixes used across services.
const (
	AccountPrefix  = "acc"
	MovementPrefix = "mov"
)

// GenerateID generates a unique ID with the given prefix
func GenerateID(prefix string) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 12

	result := make([]byte, length)
	for i := range result {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
		}
		result[i] = charset[num.Int64()]
	}

	return fmt.Sprintf("%s-%s", prefix, string(result))
}

func hasPrefix(id, prefix string) bool {
	return strings.HasPrefix(id, prefix+"-") && len(id) > len(prefix)+1
}

// ValidateAccountID validates the account ID format
func ValidateAccountID(accountID string) bool {
	return hasPrefix(accountID, AccountPrefix)
}

// JournalKey derives the idempotency key of a transfer leg.
func JournalKey(transferID, leg string) string {
	return transferID + ":" + leg
}

// MovementKey derives the idempotency key of a single-account movement.
func MovementKey(movementID string) string {
	return "mov:" + movementID
}
