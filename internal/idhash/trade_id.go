// Package idhash computes deterministic identifiers so identical runs
// produce byte-identical trade logs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(route_key|strategy_id|side|opened_at|closed_at)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(routeKey, strategyID, side string, openedAt, closedAt int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		routeKey,
		strategyID,
		side,
		openedAt,
		closedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic run identifier from a config
// fingerprint, truncated to 16 hex characters for readability.
func ComputeRunID(fingerprint string) string {
	hash := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(hash[:])[:16]
}
