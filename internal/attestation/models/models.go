package models

import (
	"encoding/json"
	"slices"
	"time"

	"dividend/pkg/canonical"
)

// Decay carries the decay figures of an epoch in shards.
type Decay struct {
	DecayedShards    int64 `json:"decayed_shards"`
	ReabsorbedShards int64 `json:"reabsorbed_shards"`
}

// UBI carries the distributed pool figures of an epoch.
type UBI struct {
	PoolTotal  int64 `json:"pool_total"`
	PerCapita  int64 `json:"per_capita"`
	Recipients int64 `json:"recipients"`
}

// Submission is the signed attestation body. IssuedAt is covered by the
// signatures, so a captured body cannot be re-dated.
type Submission struct {
	Epoch    int64           `json:"epoch"`
	GIUsed   float64         `json:"gi_used"`
	Decay    Decay           `json:"decay"`
	UBI      UBI             `json:"ubi"`
	Meta     json.RawMessage `json:"meta,omitempty"`
	IssuedAt time.Time       `json:"issued_at"`
}

// Attestation is the stored record for one epoch.
type Attestation struct {
	Epoch           int64           `json:"epoch"`
	GIUsed          float64         `json:"gi_used"`
	Decay           Decay           `json:"decay"`
	UBI             UBI             `json:"ubi"`
	Meta            json.RawMessage `json:"meta,omitempty"`
	AcceptedSigners []string        `json:"accepted_signers"`
	ContentHash     string          `json:"content_hash"`
	IssuedAt        time.Time       `json:"issued_at"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// FromSubmission builds an attestation from a verified submission.
func FromSubmission(sub Submission, signers []string) Attestation {
	return Attestation{
		Epoch:           sub.Epoch,
		GIUsed:          sub.GIUsed,
		Decay:           sub.Decay,
		UBI:             sub.UBI,
		Meta:            sub.Meta,
		AcceptedSigners: signers,
		IssuedAt:        sub.IssuedAt.UTC(),
	}
}

type hashedContent struct {
	Epoch   int64           `json:"epoch"`
	GIUsed  float64         `json:"gi_used"`
	Decay   Decay           `json:"decay"`
	UBI     UBI             `json:"ubi"`
	Meta    json.RawMessage `json:"meta,omitempty"`
	Signers []string        `json:"accepted_signers"`
}

// ComputeContentHash hashes the canonical content plus the sorted signer set.
// Timestamps, IssuedAt included, are excluded so a resubmission of identical
// content hashes equal.
func (a Attestation) ComputeContentHash() (string, error) {
	signers := slices.Clone(a.AcceptedSigners)
	slices.Sort(signers)
	signers = slices.Compact(signers)
	if signers == nil {
		signers = []string{}
	}
	meta := a.Meta
	if len(meta) == 0 || string(meta) == "null" {
		meta = nil
	}
	return canonical.Hash(hashedContent{
		Epoch:   a.Epoch,
		GIUsed:  a.GIUsed,
		Decay:   a.Decay,
		UBI:     a.UBI,
		Meta:    meta,
		Signers: signers,
	})
}

// StoreOutcome reports what an upsert did.
type StoreOutcome string

const (
	OutcomeCreated     StoreOutcome = "created"
	OutcomeUnchanged   StoreOutcome = "unchanged"
	OutcomeOverwritten StoreOutcome = "overwritten"
)

// Supersedes reports whether a may replace stored. Only a body issued after
// the stored one can change its content.
func (a Attestation) Supersedes(stored Attestation) bool {
	return a.IssuedAt.After(stored.IssuedAt)
}

// Mechanism names a proof type.
type Mechanism string

const (
	MechanismMAC       Mechanism = "hmac-sha256"
	MechanismSignature Mechanism = "ed25519"
	MechanismPolicy    Mechanism = "policy"
)

// Failure explains why a signer did not verify. It never carries key material.
type Failure struct {
	Signer    string    `json:"signer,omitempty"`
	Mechanism Mechanism `json:"mechanism"`
	Reason    string    `json:"reason"`
}

// Verification is the outcome of checking the proofs on a submission.
type Verification struct {
	Accepted []string  `json:"accepted_signers"`
	Failures []Failure `json:"failures,omitempty"`
}

// HasSigner reports whether signer verified.
func (v Verification) HasSigner(signer string) bool {
	return slices.Contains(v.Accepted, signer)
}

// Result is returned to submitters.
type Result struct {
	Epoch           int64        `json:"epoch"`
	Status          StoreOutcome `json:"status"`
	AcceptedSigners []string     `json:"accepted_signers"`
	ContentHash     string       `json:"content_hash"`
}
