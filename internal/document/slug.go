package document

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const (
	slugSuffixLength  = 6
	slugSuffixRunes   = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugMaxBaseLength = 50
)

// slugify turns a title into a URL-safe lowercase base. Non-alphanumeric
// runs collapse to a single hyphen.
func slugify(title string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r) && r < 128:
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	base := strings.Trim(sb.String(), "-")
	if len(base) > slugMaxBaseLength {
		base = strings.Trim(base[:slugMaxBaseLength], "-")
	}
	if base == "" {
		base = "untitled"
	}
	return base
}

// randomSlugSuffix returns a short random alphanumeric suffix.
func randomSlugSuffix() (string, error) {
	var sb strings.Builder
	for i := 0; i < slugSuffixLength; i++ {
		idx, errRand := rand.Int(rand.Reader, big.NewInt(int64(len(slugSuffixRunes))))
		if errRand != nil {
			return "", fmt.Errorf("document: slug suffix: %w", errRand)
		}
		sb.WriteByte(slugSuffixRunes[idx.Int64()])
	}
	return sb.String(), nil
}

// GenerateSlug builds a unique-enough public slug from a title.
func GenerateSlug(title string) (string, error) {
	suffix, errSuffix := randomSlugSuffix()
	if errSuffix != nil {
		return "", errSuffix
	}
	return slugify(title) + "-" + suffix, nil
}
