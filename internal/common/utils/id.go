// Package utils provides small helpers shared across the service: random
// ids for request correlation, retry with exponential backoff, and duration
// parsing that understands days and weeks.
package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateRandomID generates a cryptographically secure random hex ID.
//
// Each byte generates 2 hex characters, so length/2 bytes are read and an
// odd length yields a string one character shorter.
func GenerateRandomID(length int) (string, error) {
	if length < 0 {
		length = 0
	}
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateRequestID generates a unique request ID for tracing and correlation.
//
// The format is "req-{randomHex}-{timestamp}" where randomHex is 16 hex
// characters and timestamp is the current Unix time.
func GenerateRequestID() (string, error) {
	id, err := GenerateRandomID(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return fmt.Sprintf("req-%s-%d", id, time.Now().Unix()), nil
}

// MustGenerateRequestID generates a request ID or panics on failure.
func MustGenerateRequestID() string {
	id, err := GenerateRequestID()
	if err != nil {
		panic(fmt.Sprintf("failed to generate request ID: %v", err))
	}
	return id
}
