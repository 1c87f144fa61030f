package verifier

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"

	"dividend/pkg/canonical"
)

// Signer attaches the proof headers to an outgoing attestation body. Either
// mechanism may be left unconfigured.
type Signer struct {
	macSignerID string
	macSecret   []byte
	sigSignerID string
	privKey     ed25519.PrivateKey
}

// NewSigner builds a Signer. privateKeyHex accepts a 32-byte seed or a 64-byte
// private key.
func NewSigner(macSignerID, macSecret, sigSignerID, privateKeyHex string) (*Signer, error) {
	s := &Signer{}
	if macSignerID != "" {
		if macSecret == "" {
			return nil, fmt.Errorf("mac signer %q has no secret", macSignerID)
		}
		s.macSignerID = macSignerID
		s.macSecret = []byte(macSecret)
	}
	if sigSignerID != "" {
		raw, err := hex.DecodeString(privateKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid private key hex: %w", err)
		}
		switch len(raw) {
		case ed25519.SeedSize:
			s.privKey = ed25519.NewKeyFromSeed(raw)
		case ed25519.PrivateKeySize:
			s.privKey = ed25519.PrivateKey(raw)
		default:
			return nil, fmt.Errorf("invalid private key size")
		}
		s.sigSignerID = sigSignerID
	}
	return s, nil
}

// PublicKeyHex returns the hex Ed25519 public key, or "" when not configured.
func (s *Signer) PublicKeyHex() string {
	if s.privKey == nil {
		return ""
	}
	return hex.EncodeToString(s.privKey.Public().(ed25519.PublicKey))
}

// Sign returns the proof headers for body.
func (s *Signer) Sign(body []byte) (http.Header, error) {
	payload, err := canonical.Transform(body)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	if s.macSignerID != "" {
		h.Set(HeaderMACSigner, s.macSignerID)
		h.Set(HeaderMAC, hex.EncodeToString(computeMAC(s.macSecret, payload)))
	}
	if s.sigSignerID != "" {
		h.Set(HeaderSigSigner, s.sigSignerID)
		h.Set(HeaderSignature, base64.StdEncoding.EncodeToString(ed25519.Sign(s.privKey, payload)))
	}
	return h, nil
}
