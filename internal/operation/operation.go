// Package operation defines the wire and storage representation of one
// captured mutation: the client-authored Operation and the server-side
// ServerOperation carrying the merge outcome.
package operation

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Kind classifies a record lifecycle mutation.
type Kind string

const (
	Added    Kind = "Added"
	Modified Kind = "Modified"
	Deleted  Kind = "Deleted"
)

// Operation is one field-level (or lifecycle-level) mutation captured for
// replication. The id doubles as the idempotency token on the server.
type Operation struct {
	ID        string     `json:"id"`
	TableName string     `json:"tableName"`
	ItemID    string     `json:"itemId"`
	Kind      Kind       `json:"type"`
	Property  string     `json:"property,omitempty"`
	Value     *string    `json:"value,omitempty"`
	OldValue  *string    `json:"oldValue,omitempty"`
	CreatedAt timex.Time `json:"createdAt"`
}

// New returns an operation with a fresh globally unique id.
func New(tableName, itemID string, kind Kind, createdAt timex.Time) Operation {
	return Operation{
		ID:        uuid.NewString(),
		TableName: tableName,
		ItemID:    itemID,
		Kind:      kind,
		CreatedAt: createdAt,
	}
}

// GroupKey identifies the record an operation targets. Operations sharing a
// key form one merge group and are never split across push pages.
type GroupKey struct {
	TableName string
	ItemID    string
}

func (o Operation) GroupKey() GroupKey {
	return GroupKey{TableName: o.TableName, ItemID: o.ItemID}
}

func (o Operation) String() string {
	return fmt.Sprintf("id %s, %s %s in table %s for item %s", o.ID, o.Kind, o.Property, o.TableName, o.ItemID)
}

// ProcessingType is the server-assigned outcome of merging one operation.
type ProcessingType string

const (
	Processed         ProcessingType = "Processed"
	DiscardedOutdated ProcessingType = "DiscardedOutdated"
	DiscardedDeleted  ProcessingType = "DiscardedDeleted"
)

// ServerOperation is an Operation after it reached the server: it records
// who sent it, what the merge decided, and when. Entries are append-only;
// ProcessingType and ServerUpdatedAt are set once during the merge and never
// revised.
type ServerOperation struct {
	Operation
	UserID          string         `json:"userId,omitempty"`
	InstallationID  string         `json:"installationId,omitempty"`
	ProcessingType  ProcessingType `json:"processingType"`
	ServerUpdatedAt timex.Time     `json:"serverUpdatedAt"`
}

// FromClient copies a client operation into its server representation,
// stamped with the batch's user and installation. The processing type starts
// as Processed and is downgraded by the merge engine when the operation is
// discarded.
func FromClient(op Operation, userID, installationID string) ServerOperation {
	return ServerOperation{
		Operation:      op,
		UserID:         userID,
		InstallationID: installationID,
		ProcessingType: Processed,
	}
}
