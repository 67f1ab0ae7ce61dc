// Package auth issues and verifies the bearer tokens that identify record
// owners.
package auth

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voicescribe/backend/libs/clock"
	"github.com/voicescribe/backend/libs/errors"
	"github.com/voicescribe/backend/libs/sig"
)

// ErrInvalidToken is returned for tokens that are malformed, expired or not
// signed by a known key.
var ErrInvalidToken = errors.New("auth: invalid token")

// Authenticator resolves a bearer token to an owner ID.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// TokenAuthenticator issues and verifies HMAC-signed bearer tokens of the
// form base64(ownerID|expires).base64(signature).
type TokenAuthenticator struct {
	signer *sig.Signer
	clk    clock.Clock
	ttl    time.Duration
}

// NewTokenAuthenticator returns a TokenAuthenticator signing with the
// provided signer. Issued tokens expire after ttl.
func NewTokenAuthenticator(signer *sig.Signer, clk clock.Clock, ttl time.Duration) *TokenAuthenticator {
	return &TokenAuthenticator{signer: signer, clk: clk, ttl: ttl}
}

// IssueToken returns a new bearer token for an owner.
func (a *TokenAuthenticator) IssueToken(ownerID string) (string, error) {
	if ownerID == "" {
		return "", errors.New("auth: empty owner ID")
	}
	payload := []byte(fmt.Sprintf("%s|%d", ownerID, a.clk.Now().Add(a.ttl).Unix()))
	signature, err := a.signer.Sign(payload)
	if err != nil {
		return "", errors.Trace(err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(signature), nil
}

// Authenticate verifies a token and returns the owner ID it was issued to.
func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	enc := base64.RawURLEncoding
	dot := strings.IndexByte(token, '.')
	if dot <= 0 || dot == len(token)-1 {
		return "", ErrInvalidToken
	}
	payload, err := enc.DecodeString(token[:dot])
	if err != nil {
		return "", ErrInvalidToken
	}
	signature, err := enc.DecodeString(token[dot+1:])
	if err != nil {
		return "", ErrInvalidToken
	}
	if !a.signer.Verify(payload, signature) {
		return "", ErrInvalidToken
	}
	sep := bytes.LastIndexByte(payload, '|')
	if sep <= 0 {
		return "", ErrInvalidToken
	}
	ownerID := string(payload[:sep])
	expires, err := strconv.ParseInt(string(payload[sep+1:]), 10, 64)
	if err != nil {
		return "", ErrInvalidToken
	}
	if a.clk.Now().Unix() >= expires {
		return "", ErrInvalidToken
	}
	return ownerID, nil
}
