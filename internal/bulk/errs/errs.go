// Package errs defines the typed per-entity validation failures the pipeline
// attaches to individual entities, plus the request-level error codes shared
// by handlers.
package errs

import (
	"fmt"
	"strings"
)

// Type classifies whether retrying the same request could succeed.
type Type string

const (
	// Recoverable failures may clear on retry (e.g. a transient downstream
	// outage during publish).
	Recoverable Type = "RECOVERABLE"
	// NonRecoverable failures will fail again unchanged (bad payload,
	// conflicting state, remote lookup failure within this request).
	NonRecoverable Type = "NON_RECOVERABLE"
)

// Code identifies a validation failure category.
type Code string

const (
	CodeNullID             Code = "NULL_ID"
	CodeDuplicateInBatch   Code = "DUPLICATE_IN_BATCH"
	CodeAlreadyDeleted     Code = "ALREADY_DELETED"
	CodeNonExistentEntity  Code = "NON_EXISTENT_ENTITY"
	CodeRowVersionMismatch Code = "ROW_VERSION_MISMATCH"
	CodeNonExistentRelated Code = "NON_EXISTENT_RELATED_ENTITY"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodeDuplicateMapping   Code = "DUPLICATE_MAPPING"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
)

// Error is a validation failure attached to a specific entity instance,
// never to a batch as a whole.
type Error struct {
	Code    Code   `json:"errorCode"`
	Message string `json:"errorMessage"`
	Type    Type   `json:"type"`
	Cause   error  `json:"-"`
}

func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e Error) Unwrap() error { return e.Cause }

// ForNullID flags an entity that pre-supplied a server-assigned id on create.
func ForNullID() Error {
	return Error{
		Code:    CodeNullID,
		Message: "id must not be supplied on create",
		Type:    NonRecoverable,
	}
}

// ForDuplicateInBatch flags an entity whose identifier collides with another
// entity in the same batch.
func ForDuplicateInBatch(key string) Error {
	return Error{
		Code:    CodeDuplicateInBatch,
		Message: fmt.Sprintf("duplicate identifier %q within batch", key),
		Type:    NonRecoverable,
	}
}

// ForAlreadyDeleted flags an entity that is soft-deleted; deleted entities
// are terminal and accept no further mutations.
func ForAlreadyDeleted(id string) Error {
	return Error{
		Code:    CodeAlreadyDeleted,
		Message: fmt.Sprintf("entity %q is deleted and cannot be modified", id),
		Type:    NonRecoverable,
	}
}

// ForNonExistentEntity flags an update or delete against an id the store
// does not know.
func ForNonExistentEntity(id string) Error {
	return Error{
		Code:    CodeNonExistentEntity,
		Message: fmt.Sprintf("entity %q does not exist", id),
		Type:    NonRecoverable,
	}
}

// ForRowVersionMismatch flags an optimistic concurrency failure: the
// client-supplied row version no longer matches the stored one.
func ForRowVersionMismatch(id string, supplied, stored int) Error {
	return Error{
		Code:    CodeRowVersionMismatch,
		Message: fmt.Sprintf("entity %q row version %d does not match stored %d", id, supplied, stored),
		Type:    NonRecoverable,
	}
}

// ForNonExistentRelated flags references that could not be resolved in the
// owning service.
func ForNonExistentRelated(kind string, ids []string) Error {
	return Error{
		Code:    CodeNonExistentRelated,
		Message: fmt.Sprintf("related %s not found: %s", kind, strings.Join(ids, ", ")),
		Type:    NonRecoverable,
	}
}

// ForNetworkError flags a failed remote lookup. This is deliberately a
// distinct category: a peer being unreachable must never read as "the
// reference does not exist".
func ForNetworkError(kind string, cause error) Error {
	return Error{
		Code:    CodeNetworkError,
		Message: fmt.Sprintf("lookup against %s service failed", kind),
		Type:    NonRecoverable,
		Cause:   cause,
	}
}

// ForDuplicateMapping flags a composite-key conflict on a link entity.
func ForDuplicateMapping(combination string) Error {
	return Error{
		Code:    CodeDuplicateMapping,
		Message: fmt.Sprintf("combination %q already claimed", combination),
		Type:    NonRecoverable,
	}
}

// ForPublishFailure flags entities whose enriched batch could not be handed
// to the persistence channel; the request may be retried as-is.
func ForPublishFailure(cause error) Error {
	return Error{
		Code:    CodeInternal,
		Message: "failed to hand off batch for persistence",
		Type:    Recoverable,
		Cause:   cause,
	}
}
