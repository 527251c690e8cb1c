package domain

import (
	"context"
	"time"
)

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditAccessLog    AuditEventType = "access"
	AuditAccessDenied AuditEventType = "access_denied"
	AuditDataEvent    AuditEventType = "data_event"

	AuditDatabaseCreate AuditEventType = "database_create"
	AuditDatabaseDelete AuditEventType = "database_delete"

	AuditCollectionCreate AuditEventType = "collection_create"
	AuditCollectionDelete AuditEventType = "collection_delete"

	AuditProviderCreate AuditEventType = "provider_create"
	AuditProviderDelete AuditEventType = "provider_delete"

	AuditAPIKeyCreate AuditEventType = "apikey_create"
	AuditAPIKeyRevoke AuditEventType = "apikey_revoke"
)

// AuditEvent represents a single auditable control-plane action: a database,
// collection, provider, or API key mutation, or an access decision.
type AuditEvent struct {
	ID        string            `json:"id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Detail    map[string]string `json:"detail,omitempty"`

	Actor    string `json:"actor,omitempty"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// AuditLogger writes audit events to a persistent log.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Close() error
}
