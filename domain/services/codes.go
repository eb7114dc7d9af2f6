package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// codeAlphabet leaves out 0, O, 1 and I so codes survive being read aloud
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// InviteCodeLength is the length of challenge invite codes
	InviteCodeLength = 8
	// ReferralCodeLength is the length of user referral codes
	ReferralCodeLength = 8

	maxCodeAttempts = 10
)

// RandomCode returns a uniformly random code over codeAlphabet
func RandomCode(length int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = codeAlphabet[n.Int64()]
	}
	return string(out), nil
}

// uniqueCode draws codes until exists reports one as free
func uniqueCode(ctx context.Context, length int, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := RandomCode(length)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free code after %d attempts", maxCodeAttempts)
}
