// Package models defines the server-side persistence types of the sync
// engine.
package models

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Record is the materialized server state of one synced item: the base
// fields every table shares plus the schema fields as a loose map of native
// values. Deleted records stay in place with DeletedAt set so the deletion
// can still be replicated to clients that pulled the record earlier.
type Record struct {
	TableName       string
	ID              string
	CreatedAt       timex.Time
	UpdatedAt       timex.Time
	DeletedAt       *timex.Time
	ServerUpdatedAt timex.Time
	UserID          string
	Fields          map[string]any
}

// Deleted reports whether the record carries the soft-delete marker.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// SetField assigns one schema field, allocating the map on first use.
func (r *Record) SetField(name string, v any) {
	if r.Fields == nil {
		r.Fields = make(map[string]any)
	}
	r.Fields[name] = v
}

// recordWireKeys are the base fields of the flat wire object; schema fields
// may not use these names.
var recordWireKeys = map[string]struct{}{
	"id":              {},
	"createdAt":       {},
	"updatedAt":       {},
	"deletedAt":       {},
	"serverUpdatedAt": {},
	"userId":          {},
}

// MarshalJSON renders the record as one flat object: base fields and schema
// fields side by side, the shape clients decode when pulling. The table name
// is carried by the listing path, not by the object.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		if _, reserved := recordWireKeys[k]; reserved {
			return nil, fmt.Errorf("%w: field name %q collides with a base field", common.ErrInvalidArgument, k)
		}
		out[k] = v
	}

	out["id"] = r.ID
	out["createdAt"] = r.CreatedAt
	out["updatedAt"] = r.UpdatedAt
	out["serverUpdatedAt"] = r.ServerUpdatedAt
	if r.DeletedAt != nil {
		out["deletedAt"] = r.DeletedAt
	}
	if r.UserID != "" {
		out["userId"] = r.UserID
	}

	return json.Marshal(out)
}

// UnmarshalJSON splits a flat wire object back into base fields and the
// schema field map. The table name cannot be recovered from the object and
// is left empty.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	pick := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			return nil
		}
		return json.Unmarshal(v, dst)
	}

	if err := pick("id", &r.ID); err != nil {
		return err
	}
	if err := pick("createdAt", &r.CreatedAt); err != nil {
		return err
	}
	if err := pick("updatedAt", &r.UpdatedAt); err != nil {
		return err
	}
	if err := pick("serverUpdatedAt", &r.ServerUpdatedAt); err != nil {
		return err
	}
	if err := pick("userId", &r.UserID); err != nil {
		return err
	}

	if v, ok := raw["deletedAt"]; ok && string(v) != "null" {
		var ts timex.Time
		if err := json.Unmarshal(v, &ts); err != nil {
			return err
		}
		r.DeletedAt = &ts
	}

	r.Fields = nil
	for key, rawValue := range raw {
		if _, reserved := recordWireKeys[key]; reserved {
			continue
		}
		var v any
		if err := json.Unmarshal(rawValue, &v); err != nil {
			return err
		}
		r.SetField(key, v)
	}

	return nil
}
