package verifier

import (
	"crypto/ed25519"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dividend/internal/attestation/models"
	dErrors "dividend/pkg/domain-errors"
)

const body = `{"epoch":7,"gi_used":0.96,"decay":{"decayed_shards":10,"reabsorbed_shards":4},"ubi":{"pool_total":100,"per_capita":10,"recipients":10}}`

type VerifierSuite struct {
	suite.Suite
	seed     []byte
	pubHex   string
	signer   *Signer
	verifier *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.seed = make([]byte, ed25519.SeedSize)
	for i := range s.seed {
		s.seed[i] = byte(i + 1)
	}
	signer, err := NewSigner("treasury", "mac-secret", "auditor", hex.EncodeToString(s.seed))
	s.Require().NoError(err)
	s.signer = signer
	s.pubHex = signer.PublicKeyHex()

	kr, err := NewKeyring(map[string]string{"treasury": "mac-secret"}, map[string]string{"auditor": s.pubHex})
	s.Require().NoError(err)
	s.verifier = New(kr)
}

// =============================================================================
// Verification
// =============================================================================

func (s *VerifierSuite) TestBothProofsVerify() {
	h, err := s.signer.Sign([]byte(body))
	s.Require().NoError(err)

	v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
	s.Require().NoError(err)
	s.Equal([]string{"auditor", "treasury"}, v.Accepted)
	s.Empty(v.Failures)
}

func (s *VerifierSuite) TestCanonicalizationIgnoresKeyOrderAndWhitespace() {
	h, err := s.signer.Sign([]byte(body))
	s.Require().NoError(err)

	reordered := `{ "ubi": {"recipients":10,"per_capita":10,"pool_total":100},
		"decay": {"reabsorbed_shards":4,"decayed_shards":10}, "gi_used": 0.96, "epoch": 7 }`
	v, err := s.verifier.VerifyDualSignatures(h, []byte(reordered))
	s.Require().NoError(err)
	s.Len(v.Accepted, 2)
}

func (s *VerifierSuite) TestTamperedBodyFailsBoth() {
	h, err := s.signer.Sign([]byte(body))
	s.Require().NoError(err)

	tampered := `{"epoch":7,"gi_used":0.99,"decay":{"decayed_shards":10,"reabsorbed_shards":4},"ubi":{"pool_total":100,"per_capita":10,"recipients":10}}`
	v, err := s.verifier.VerifyDualSignatures(h, []byte(tampered))
	s.Require().NoError(err)
	s.Empty(v.Accepted)
	s.Require().Len(v.Failures, 2)
	for _, f := range v.Failures {
		s.Equal(ReasonMismatch, f.Reason)
	}
}

func (s *VerifierSuite) TestOnlyMACPresent() {
	h, err := s.signer.Sign([]byte(body))
	s.Require().NoError(err)
	h.Del(HeaderSigSigner)
	h.Del(HeaderSignature)

	v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
	s.Require().NoError(err)
	s.Equal([]string{"treasury"}, v.Accepted)
	s.Empty(v.Failures)
}

func (s *VerifierSuite) TestFailureReasons() {
	s.Run("unknown signer", func() {
		h, err := s.signer.Sign([]byte(body))
		s.Require().NoError(err)
		h.Set(HeaderMACSigner, "mallory")

		v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
		s.Require().NoError(err)
		s.Equal([]string{"auditor"}, v.Accepted)
		s.Require().Len(v.Failures, 1)
		s.Equal(models.Failure{Signer: "mallory", Mechanism: models.MechanismMAC, Reason: ReasonUnknownSigner}, v.Failures[0])
	})

	s.Run("proof without signer", func() {
		h := http.Header{}
		h.Set(HeaderSignature, "AAAA")
		v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
		s.Require().NoError(err)
		s.Require().Len(v.Failures, 1)
		s.Equal(ReasonMissingSigner, v.Failures[0].Reason)
	})

	s.Run("signer without proof", func() {
		h := http.Header{}
		h.Set(HeaderMACSigner, "treasury")
		v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
		s.Require().NoError(err)
		s.Require().Len(v.Failures, 1)
		s.Equal(ReasonMissingProof, v.Failures[0].Reason)
	})

	s.Run("malformed encodings", func() {
		h := http.Header{}
		h.Set(HeaderMACSigner, "treasury")
		h.Set(HeaderMAC, "not-hex")
		h.Set(HeaderSigSigner, "auditor")
		h.Set(HeaderSignature, "%%%")
		v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
		s.Require().NoError(err)
		s.Require().Len(v.Failures, 2)
		s.Equal(ReasonMalformed, v.Failures[0].Reason)
		s.Equal(ReasonMalformed, v.Failures[1].Reason)
	})

	s.Run("failures never echo key material", func() {
		h := http.Header{}
		h.Set(HeaderMACSigner, "treasury")
		h.Set(HeaderMAC, hex.EncodeToString([]byte("wrong")))
		v, err := s.verifier.VerifyDualSignatures(h, []byte(body))
		s.Require().NoError(err)
		for _, f := range v.Failures {
			s.NotContains(f.Reason, "mac-secret")
		}
	})
}

func (s *VerifierSuite) TestNoHeaders() {
	v, err := s.verifier.VerifyDualSignatures(http.Header{}, []byte(body))
	s.Require().NoError(err)
	s.Empty(v.Accepted)
	s.Empty(v.Failures)
}

func (s *VerifierSuite) TestInvalidBody() {
	_, err := s.verifier.VerifyDualSignatures(http.Header{}, []byte(`{"epoch":`))
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeInvalidInput))
}

// =============================================================================
// Keys
// =============================================================================

func TestNewKeyring(t *testing.T) {
	_, err := NewKeyring(nil, map[string]string{"a": "zz"})
	require.Error(t, err)

	_, err = NewKeyring(nil, map[string]string{"a": "abcd"})
	require.Error(t, err)

	_, err = NewKeyring(map[string]string{"a": ""}, nil)
	require.Error(t, err)

	kr, err := NewKeyring(map[string]string{"a": "s"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), kr.MACSecrets["a"])
}

func TestNewSigner(t *testing.T) {
	_, err := NewSigner("m", "", "", "")
	require.Error(t, err)

	_, err = NewSigner("", "", "s", "abcd")
	require.Error(t, err)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	full, err := NewSigner("", "", "s", hex.EncodeToString(priv))
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(priv.Public().(ed25519.PublicKey)), full.PublicKeyHex())

	empty, err := NewSigner("", "", "", "")
	require.NoError(t, err)
	h, err := empty.Sign([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, h)
	assert.Empty(t, empty.PublicKeyHex())
}
