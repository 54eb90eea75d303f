package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Hash represents a content hash. It identifies cache entries and is not an integrity check.
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for logs.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// GroupFingerprint identifies an observation group by date and label.
type GroupFingerprint Hash

func (h GroupFingerprint) String() string { return Hash(h).String() }

// ComputeGroupFingerprint hashes the canonical JSON form of {date, label}.
func ComputeGroupFingerprint(date time.Time, label string) GroupFingerprint {
	payload := struct {
		Date  string `json:"date"`
		Label string `json:"label"`
	}{
		Date:  date.UTC().Format("2006-01-02"),
		Label: label,
	}
	data, _ := json.Marshal(payload)
	return GroupFingerprint(NewHash(data))
}

// ComputeTableKey combines a group fingerprint with a feature set. Feature order does not matter.
func ComputeTableKey(group GroupFingerprint, features []string) Hash {
	sorted := append([]string(nil), features...)
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(group.String())
	b.WriteString("|")
	b.WriteString(strings.Join(sorted, ","))
	return NewHash([]byte(b.String()))
}

// ComputeSessionKey hashes an ordered list of group fingerprints plus any extra parts.
func ComputeSessionKey(groups []GroupFingerprint, parts ...string) Hash {
	var b strings.Builder
	for _, g := range groups {
		b.WriteString(g.String())
		b.WriteString(";")
	}
	for _, p := range parts {
		b.WriteString(p)
		b.WriteString(";")
	}
	return NewHash([]byte(b.String()))
}
