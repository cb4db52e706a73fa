package refcode

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.uber.org/fx"
)

// CodeLength is the fixed width of every generated code.
const CodeLength = 6

var Module = fx.Module("refcode",
	fx.Provide(func() Generator { return HashGenerator{} }),
)

// Generator derives a short numeric code from an ordered tuple of identifiers.
// Implementations must be deterministic and side-effect free: the same parts in
// the same order always produce the same code, and distinct tuples produce
// distinct codes with overwhelming probability.
type Generator interface {
	Code(parts ...string) string
}

// HashGenerator is the legacy derivation: MD5 the concatenated parts, collect
// the digit characters of successive hex digests until six are available.
//
// This is not cryptographically secure: MD5, a six-digit space, and inputs that
// are mostly public identifiers. It is kept because issued QR codes in the
// field were derived this way. New deployments should prefer HMACGenerator.
type HashGenerator struct{}

func (HashGenerator) Code(parts ...string) string {
	digest := hexMD5([]byte(strings.Join(parts, "")))
	var digits strings.Builder
	for digits.Len() < CodeLength {
		for _, c := range digest {
			if c >= '0' && c <= '9' {
				digits.WriteRune(c)
			}
		}
		if digits.Len() >= CodeLength {
			break
		}
		digest = hexMD5([]byte(digest))
	}
	return digits.String()[:CodeLength]
}

func hexMD5(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// HMACGenerator is the hardened derivation: HMAC-SHA256 keyed with a secret
// salt, same six-digit numeric contract. Switching a deployment to it
// invalidates every code derived by HashGenerator, so the swap is a deliberate
// migration, never a silent default.
type HMACGenerator struct {
	Secret []byte
}

func NewHMACGenerator(secret string) HMACGenerator {
	return HMACGenerator{Secret: []byte(secret)}
}

func (g HMACGenerator) Code(parts ...string) string {
	mac := hmac.New(sha256.New, g.Secret)
	mac.Write([]byte(strings.Join(parts, "")))
	digest := hex.EncodeToString(mac.Sum(nil))

	var digits strings.Builder
	for digits.Len() < CodeLength {
		for _, c := range digest {
			if c >= '0' && c <= '9' {
				digits.WriteRune(c)
			}
		}
		if digits.Len() >= CodeLength {
			break
		}
		sum := sha256.Sum256([]byte(digest))
		digest = hex.EncodeToString(sum[:])
	}
	return digits.String()[:CodeLength]
}
