// Package verifier checks and produces the dual proofs carried by attestation
// submissions: an HMAC-SHA256 from a shared-secret signer and an Ed25519
// signature from an asymmetric signer, both over the JCS-canonical body.
package verifier

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"dividend/internal/attestation/models"
	"dividend/pkg/canonical"
	dErrors "dividend/pkg/domain-errors"
)

const (
	HeaderMACSigner = "X-Attest-Mac-Signer"
	HeaderMAC       = "X-Attest-Mac"
	HeaderSigSigner = "X-Attest-Sig-Signer"
	HeaderSignature = "X-Attest-Signature"
)

const (
	ReasonMissingSigner = "signer header missing"
	ReasonMissingProof  = "proof header missing"
	ReasonUnknownSigner = "unknown signer"
	ReasonMalformed     = "malformed proof encoding"
	ReasonMismatch      = "proof does not match body"
)

// Keyring holds the verification material per signer id.
type Keyring struct {
	MACSecrets map[string][]byte
	PublicKeys map[string]ed25519.PublicKey
}

// NewKeyring decodes hex-encoded Ed25519 public keys. MAC secrets are used as
// given.
func NewKeyring(macSecrets map[string]string, publicKeysHex map[string]string) (Keyring, error) {
	kr := Keyring{
		MACSecrets: make(map[string][]byte, len(macSecrets)),
		PublicKeys: make(map[string]ed25519.PublicKey, len(publicKeysHex)),
	}
	for id, secret := range macSecrets {
		if secret == "" {
			return Keyring{}, fmt.Errorf("mac secret for %q is empty", id)
		}
		kr.MACSecrets[id] = []byte(secret)
	}
	for id, pubHex := range publicKeysHex {
		pub, err := hex.DecodeString(pubHex)
		if err != nil {
			return Keyring{}, fmt.Errorf("invalid public key hex for %q: %w", id, err)
		}
		if len(pub) != ed25519.PublicKeySize {
			return Keyring{}, fmt.Errorf("invalid public key size for %q", id)
		}
		kr.PublicKeys[id] = ed25519.PublicKey(pub)
	}
	return kr, nil
}

// Verifier reports which declared signers' proofs hold. It applies no
// acceptance policy.
type Verifier struct {
	keys Keyring
}

func New(keys Keyring) *Verifier {
	return &Verifier{keys: keys}
}

// VerifyDualSignatures verifies every proof present in headers against the
// canonical form of body. The only error is a body that is not JSON.
func (v *Verifier) VerifyDualSignatures(headers http.Header, body []byte) (models.Verification, error) {
	payload, err := canonical.Transform(body)
	if err != nil {
		return models.Verification{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "attestation body is not valid json")
	}

	var out models.Verification
	record := func(signer string, mech models.Mechanism, reason string) {
		if reason == "" {
			if !slices.Contains(out.Accepted, signer) {
				out.Accepted = append(out.Accepted, signer)
			}
			return
		}
		out.Failures = append(out.Failures, models.Failure{Signer: signer, Mechanism: mech, Reason: reason})
	}

	if signer, proof, present := pair(headers, HeaderMACSigner, HeaderMAC); present {
		record(signer, models.MechanismMAC, v.checkMAC(signer, proof, payload))
	}
	if signer, proof, present := pair(headers, HeaderSigSigner, HeaderSignature); present {
		record(signer, models.MechanismSignature, v.checkSignature(signer, proof, payload))
	}
	slices.Sort(out.Accepted)
	return out, nil
}

func pair(headers http.Header, signerKey, proofKey string) (signer, proof string, present bool) {
	signer = strings.TrimSpace(headers.Get(signerKey))
	proof = strings.TrimSpace(headers.Get(proofKey))
	return signer, proof, signer != "" || proof != ""
}

func (v *Verifier) checkMAC(signer, proof string, payload []byte) string {
	switch {
	case signer == "":
		return ReasonMissingSigner
	case proof == "":
		return ReasonMissingProof
	}
	secret, ok := v.keys.MACSecrets[signer]
	if !ok {
		return ReasonUnknownSigner
	}
	got, err := hex.DecodeString(proof)
	if err != nil {
		return ReasonMalformed
	}
	if !hmac.Equal(got, computeMAC(secret, payload)) {
		return ReasonMismatch
	}
	return ""
}

func (v *Verifier) checkSignature(signer, proof string, payload []byte) string {
	switch {
	case signer == "":
		return ReasonMissingSigner
	case proof == "":
		return ReasonMissingProof
	}
	pub, ok := v.keys.PublicKeys[signer]
	if !ok {
		return ReasonUnknownSigner
	}
	sig, err := base64.StdEncoding.DecodeString(proof)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return ReasonMalformed
	}
	if !ed25519.Verify(pub, payload, sig) {
		return ReasonMismatch
	}
	return ""
}

func computeMAC(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
