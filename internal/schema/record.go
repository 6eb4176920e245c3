// Package schema defines the shape of syncable records: the common Record
// base, explicit field descriptors with canonical string codecs, and the
// registry mapping table names to descriptors.
//
// Field enumeration is fully declarative. A record type lists its syncable
// fields once, with typed accessors, and both the change tracker and the
// server merge engine work off that list. Identity and server-reserved
// values (id, timestamps, soft-delete marker, owner) are never part of the
// field list.
package schema

import "github.com/dmitrijs2005/opsync/internal/timex"

// Record is the client-visible base of every syncable entity.
type Record struct {
	// ID is the stable, client-generated identifier. It never changes after
	// creation.
	ID string `json:"id"`

	// CreatedAt is the moment the record was first saved locally.
	CreatedAt timex.Time `json:"createdAt"`

	// UpdatedAt is the moment the record was last saved locally. It doubles
	// as the causal token stamped onto operations.
	UpdatedAt timex.Time `json:"updatedAt"`
}

// Item is implemented by every application record type: a struct embedding
// Record plus its own fields.
type Item interface {
	// TableName returns the logical table the record belongs to.
	TableName() string

	// Base exposes the embedded Record for identity and timestamps.
	Base() *Record
}
