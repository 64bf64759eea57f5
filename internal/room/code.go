package room

import (
	"context"
	"math/rand/v2"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// maxCodeAttempts bounds collision retries during room creation so code
	// generation cannot loop forever on a crowded keyspace.
	maxCodeAttempts = 50
)

// GenerateCode produces a 6-character room code from [A-Z0-9].
func GenerateCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

// uniqueCode generates codes until one does not collide with a live room,
// giving up after maxCodeAttempts. The exists-then-write pair is not atomic;
// two racing creates can still draw the same code, which the 36^6 keyspace
// makes vanishingly unlikely.
func uniqueCode(ctx context.Context, store Store) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := GenerateCode()
		exists, err := store.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
