// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AdminKeyHeader carries the admin key on privileged requests.
const AdminKeyHeader = "X-Admin-Key"

var (
	ErrMissingAdminKey = errors.New("admin key required")
	ErrInvalidAdminKey = errors.New("invalid admin key")
)

// ValidateAdminKey compares a presented key against the configured one in
// constant time. An empty expected key disables the check.
func ValidateAdminKey(provided, expected string) error {
	if expected == "" {
		return nil
	}
	if provided == "" {
		return ErrMissingAdminKey
	}
	// Compare digests so the comparison does not leak the key length.
	p := sha256.Sum256([]byte(provided))
	e := sha256.Sum256([]byte(expected))
	if !hmac.Equal(p[:], e[:]) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateVoterToken creates a random voter identity for browsers that do
// not have one yet.
func GenerateVoterToken() (string, error) {
	b := make([]byte, 18) // 144 bits
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate voter token: %w", err)
	}
	return "voter-" + strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// HashIP creates a one-way hash of an IP address.
func HashIP(ip, salt string) string {
	if ip == "" {
		return ""
	}
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil)[:8])
}
