// Package confirmtoken encodes confirmation secrets and email addresses
// for transport as URL query parameters. The secret and the email travel
// as two independent base64url strings; decoding one never depends on the
// other. The codec makes no judgement about a secret's validity, that is
// the account side's job.
package confirmtoken

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a token is not valid unpadded base64url.
var ErrMalformed = errors.New("malformed token")

// EncodeSecret encodes an opaque confirmation secret for safe embedding
// in a URL. Unpadded base64url, so the result contains no '+', '/' or '='.
func EncodeSecret(secret []byte) string {
	return base64.RawURLEncoding.EncodeToString(secret)
}

// DecodeSecret is the exact inverse of EncodeSecret.
func DecodeSecret(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return raw, nil
}

// EncodeEmail encodes an email address the same way as secrets, as its
// own independent channel.
func EncodeEmail(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(email))
}

// DecodeEmail is the exact inverse of EncodeEmail.
func DecodeEmail(encoded string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(raw), nil
}
