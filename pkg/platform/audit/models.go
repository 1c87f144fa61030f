package audit

import (
	"context"
	"log/slog"
	"time"

	"dividend/pkg/requestcontext"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention and routing.
type EventCategory string

const (
	// CategoryFinancial covers events that move or withhold funds. These are
	// the permanent reconciliation trail.
	CategoryFinancial EventCategory = "financial"

	// CategorySecurity covers signature failures and record overwrites.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine lifecycle events.
	CategoryOperations EventCategory = "operations"
)

// Severity levels for security-relevant events.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is emitted from domain logic to capture key actions. It stays
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory     `json:"category"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject,omitempty"`
	Epoch     int64             `json:"epoch,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Severity  Severity          `json:"severity,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Actor     string            `json:"actor,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

type AuditEvent string

const (
	EventEpochTransitioned     AuditEvent = "epoch_transitioned"
	EventEpochFailed           AuditEvent = "epoch_failed"
	EventEpochHalted           AuditEvent = "epoch_halted"
	EventMaintenanceFrozen     AuditEvent = "maintenance_frozen"
	EventMaintenanceUnfrozen   AuditEvent = "maintenance_unfrozen"
	EventRunEnqueued           AuditEvent = "run_enqueued"
	EventRunSettled            AuditEvent = "run_settled"
	EventPayoutAcked           AuditEvent = "payout_acked"
	EventSettlementExhausted   AuditEvent = "settlement_exhausted"
	EventSettlementRequeued    AuditEvent = "settlement_requeued"
	EventPayoutResolved        AuditEvent = "payout_resolved"
	EventAttestationStored     AuditEvent = "attestation_stored"
	EventAttestationOverwrite  AuditEvent = "attestation_overwritten"
	EventSignatureVerifyFailed AuditEvent = "signature_verification_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRunEnqueued:         CategoryFinancial,
	EventRunSettled:          CategoryFinancial,
	EventPayoutAcked:         CategoryFinancial,
	EventSettlementExhausted: CategoryFinancial,
	EventSettlementRequeued:  CategoryFinancial,
	EventPayoutResolved:      CategoryFinancial,
	EventAttestationStored:   CategoryFinancial,

	EventAttestationOverwrite:  CategorySecurity,
	EventSignatureVerifyFailed: CategorySecurity,

	EventEpochTransitioned:   CategoryOperations,
	EventEpochFailed:         CategoryOperations,
	EventEpochHalted:         CategoryOperations,
	EventMaintenanceFrozen:   CategoryOperations,
	EventMaintenanceUnfrozen: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is the narrow interface services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogAudit writes the event to the structured logger and, when configured,
// the audit emitter. Emission failures are logged, never returned.
func LogAudit(ctx context.Context, logger *slog.Logger, emitter Emitter, event Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = AuditEvent(event.Action).Category()
	}

	if logger != nil {
		args := []any{
			"event", event.Action,
			"log_type", "audit",
			"category", string(event.Category),
		}
		if event.Subject != "" {
			args = append(args, "subject", event.Subject)
		}
		if event.Epoch != 0 {
			args = append(args, "epoch", event.Epoch)
		}
		if event.RunID != "" {
			args = append(args, "run_id", event.RunID)
		}
		if event.Reason != "" {
			args = append(args, "reason", event.Reason)
		}
		if event.RequestID != "" {
			args = append(args, "request_id", event.RequestID)
		}
		for k, v := range event.Details {
			args = append(args, k, v)
		}
		if event.Category == CategorySecurity {
			logger.WarnContext(ctx, event.Action, args...)
		} else {
			logger.InfoContext(ctx, event.Action, args...)
		}
	}

	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
