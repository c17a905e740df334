// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "othello/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a UserID where a SuggestionID is expected.
type (
	UserID         uuid.UUID
	SuggestionID   uuid.UUID
	ActionID       uuid.UUID
	ConversationID uuid.UUID
	CorrelationID  uuid.UUID
)

// New functions - for system-generated identifiers.

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewSuggestionID() SuggestionID   { return SuggestionID(uuid.New()) }
func NewActionID() ActionID           { return ActionID(uuid.New()) }
func NewCorrelationID() CorrelationID { return CorrelationID(uuid.New()) }

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseSuggestionID(s string) (SuggestionID, error) {
	id, err := parseUUID(s, "suggestion ID")
	return SuggestionID(id), err
}

func ParseActionID(s string) (ActionID, error) {
	id, err := parseUUID(s, "action ID")
	return ActionID(id), err
}

func ParseConversationID(s string) (ConversationID, error) {
	id, err := parseUUID(s, "conversation ID")
	return ConversationID(id), err
}

// String methods - for logging and debugging.

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id SuggestionID) String() string   { return uuid.UUID(id).String() }
func (id ActionID) String() string       { return uuid.UUID(id).String() }
func (id ConversationID) String() string { return uuid.UUID(id).String() }
func (id CorrelationID) String() string  { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id SuggestionID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ConversationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CorrelationID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here; use
// IsNil() at the service layer for business validation so store lookups can
// return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
