// Package dedup provides content fingerprinting and the duplicate gate run
// before items reach the sentiment analyzer.
package dedup

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/riching/stock-scraper/internal/models"
)

const contentPrefixLen = 500

// Fingerprint computes the stable identity of an item from its title, the
// first 500 characters of its content and the declared source name. The
// source is part of the key: identical text from two different sources
// yields two distinct fingerprints.
func Fingerprint(title, content, source string) string {
	runes := []rune(content)
	if len(runes) > contentPrefixLen {
		content = string(runes[:contentPrefixLen])
	}
	input := fmt.Sprintf("%s|%s|%s", strings.TrimSpace(title), strings.TrimSpace(content), source)
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// URLFingerprint hashes a URL for link-level dedup.
func URLFingerprint(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// FilterUnique drops items whose fingerprint repeats within the batch,
// keeping the first occurrence.
func FilterUnique(items []models.InfoItem) []models.InfoItem {
	seen := make(map[string]struct{}, len(items))
	unique := make([]models.InfoItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Fingerprint]; ok {
			continue
		}
		seen[item.Fingerprint] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

// FingerprintChecker is the persisted-store lookup the gate needs.
type FingerprintChecker interface {
	FingerprintExists(fingerprint string, contentType models.ContentType) (bool, error)
}

// Gate filters fetched items down to genuinely new ones before any
// classifier call is spent on them.
type Gate struct {
	store FingerprintChecker
}

func NewGate(store FingerprintChecker) *Gate {
	return &Gate{store: store}
}

// IsNew reports whether the fingerprint is absent from the persisted table
// for this content type. Lookup errors are treated as "new" so a flaky store
// read never drops data; the unique index catches the rare duplicate write.
func (g *Gate) IsNew(fingerprint string, contentType models.ContentType) bool {
	exists, err := g.store.FingerprintExists(fingerprint, contentType)
	if err != nil {
		return true
	}
	return !exists
}
