// Package download issues and redeems short-lived tokens that gate
// access to protected file URLs. A token is the encrypted form of the
// target URL plus an expiry; nothing is persisted, so a token is valid
// until its deadline regardless of how often it is redeemed.
package download

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/secfolio/portfolio-gate/internal/secrets"
)

// DefaultTTL is how long an issued token stays redeemable.
const DefaultTTL = 60 * time.Second

var (
	// ErrInvalidToken is returned when a token does not decrypt or does
	// not carry a well-formed payload.
	ErrInvalidToken = errors.New("invalid download token")

	// ErrExpired is returned when a well-formed token is past its deadline.
	ErrExpired = errors.New("download token expired")
)

// payload is the encrypted token body. Expiry is Unix milliseconds.
type payload struct {
	Exp int64  `json:"exp"`
	URL string `json:"url"`
}

// Issuer mints and redeems download tokens.
type Issuer struct {
	codec *secrets.Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewIssuer creates an issuer with the default 60-second TTL.
func NewIssuer(codec *secrets.Codec) *Issuer {
	return &Issuer{
		codec: codec,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
}

// Issue returns a token granting access to fileURL until the TTL runs out.
func (i *Issuer) Issue(fileURL string) (string, error) {
	if fileURL == "" {
		return "", ErrInvalidToken
	}

	data, err := json.Marshal(payload{
		Exp: i.now().Add(i.ttl).UnixMilli(),
		URL: fileURL,
	})
	if err != nil {
		return "", err
	}

	return i.codec.Encrypt(string(data))
}

// Redeem validates a token and returns the file URL it grants. Garbage
// and tampered tokens yield ErrInvalidToken; stale ones ErrExpired.
func (i *Issuer) Redeem(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}

	plain, err := i.codec.Decrypt(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	var p payload
	if err := json.Unmarshal([]byte(plain), &p); err != nil {
		return "", ErrInvalidToken
	}
	if p.URL == "" || p.Exp == 0 {
		return "", ErrInvalidToken
	}

	if i.now().UnixMilli() > p.Exp {
		return "", ErrExpired
	}

	return p.URL, nil
}
