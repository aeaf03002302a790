package adaptive

import (
	"encoding/base64"
	"errors"
	"strings"
)

const envelopeVersion = "v1"

// ErrMalformedEnvelope is returned when a sealed string cannot be parsed.
var ErrMalformedEnvelope = errors.New("malformed sealed envelope")

// Sealer seals short strings into text envelopes.
type Sealer struct {
	key     []byte
	primary Cipher
}

// NewSealer creates a Sealer that encrypts with the platform's preferred
// cipher and can open envelopes from either cipher.
func NewSealer(key []byte) (*Sealer, error) {
	primary, err := New(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: append([]byte(nil), key...), primary: primary}, nil
}

// SealString encrypts plaintext and returns "v1.<cipher>.<base64url>".
func (s *Sealer) SealString(plaintext string, additionalData []byte) (string, error) {
	ct, err := s.primary.Encrypt([]byte(plaintext), additionalData)
	if err != nil {
		return "", err
	}
	return envelopeVersion + "." + string(s.primary.Type()) + "." + base64.RawURLEncoding.EncodeToString(ct), nil
}

// OpenString reverses SealString. additionalData must match.
func (s *Sealer) OpenString(envelope string, additionalData []byte) (string, error) {
	parts := strings.SplitN(envelope, ".", 3)
	if len(parts) != 3 || parts[0] != envelopeVersion {
		return "", ErrMalformedEnvelope
	}

	c, err := NewWithType(s.key, CipherType(parts[1]))
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	ct, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", ErrMalformedEnvelope
	}

	pt, err := c.Decrypt(ct, additionalData)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// IsSealed reports whether value looks like an envelope produced by a Sealer.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, envelopeVersion+".")
}
