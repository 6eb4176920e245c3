package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Descriptor ties a table name to its field list, the factory for fresh
// items, and the server path records are pulled from.
type Descriptor struct {
	// TableName is the logical table name shared by client and server.
	TableName string

	// Path is the server listing path. Empty means "/" + TableName.
	Path string

	// New creates an empty item of the described type. Schema-only
	// descriptors (server side) may leave it nil.
	New func() Item

	// Fields lists every syncable property.
	Fields []Field
}

// ListPath returns the server path used when pulling this table.
func (d *Descriptor) ListPath() string {
	if d.Path != "" {
		return "/" + strings.Trim(d.Path, "/")
	}
	return "/" + d.TableName
}

// Field finds a field by name, matching case-insensitively the way operation
// producers in older installations may spell property names.
func (d *Descriptor) Field(name string) (*Field, bool) {
	for i := range d.Fields {
		if strings.EqualFold(d.Fields[i].Name, name) {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// Properties returns every field's canonical value, keyed by field name.
func (d *Descriptor) Properties(item Item) (map[string]string, error) {
	result := make(map[string]string, len(d.Fields))
	for i := range d.Fields {
		v, err := d.Fields[i].Canonical(item)
		if err != nil {
			return nil, fmt.Errorf("field %s of %s: %w", d.Fields[i].Name, d.TableName, err)
		}
		result[d.Fields[i].Name] = v
	}
	return result, nil
}

// ApplyProperties assigns canonical values to the matching fields of an item.
// Unknown keys are ignored.
func (d *Descriptor) ApplyProperties(item Item, props map[string]string) error {
	for name, value := range props {
		f, ok := d.Field(name)
		if !ok {
			continue
		}
		if err := f.Apply(item, value); err != nil {
			return fmt.Errorf("field %s of %s: %w", name, d.TableName, err)
		}
	}
	return nil
}

// reserved keys of the flat wire object that never map to schema fields.
var reservedWireKeys = map[string]struct{}{
	"id":              {},
	"createdAt":       {},
	"updatedAt":       {},
	"deletedAt":       {},
	"serverUpdatedAt": {},
	"userId":          {},
}

// DecodeWire builds a fresh item from one flat wire object as returned by the
// server listing. It reports the server-side soft-delete marker separately;
// unknown keys are ignored.
func (d *Descriptor) DecodeWire(data []byte) (Item, *timex.Time, error) {
	if d.New == nil {
		return nil, nil, fmt.Errorf("%w: table %s has no item factory", common.ErrInvalidOperation, d.TableName)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("decoding %s record: %w", d.TableName, err)
	}

	item := d.New()
	base := item.Base()

	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &base.ID); err != nil {
			return nil, nil, fmt.Errorf("decoding %s record id: %w", d.TableName, err)
		}
	}
	if base.ID == "" {
		return nil, nil, fmt.Errorf("%w: %s record without id", common.ErrInvalidArgument, d.TableName)
	}
	if v, ok := raw["createdAt"]; ok {
		if err := json.Unmarshal(v, &base.CreatedAt); err != nil {
			return nil, nil, err
		}
	}
	if v, ok := raw["updatedAt"]; ok {
		if err := json.Unmarshal(v, &base.UpdatedAt); err != nil {
			return nil, nil, err
		}
	}

	var deletedAt *timex.Time
	if v, ok := raw["deletedAt"]; ok && string(v) != "null" {
		var ts timex.Time
		if err := json.Unmarshal(v, &ts); err != nil {
			return nil, nil, err
		}
		deletedAt = &ts
	}

	for key, rawValue := range raw {
		if _, ok := reservedWireKeys[key]; ok {
			continue
		}
		f, ok := d.Field(key)
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(rawValue, &v); err != nil {
			return nil, nil, err
		}
		if v == nil {
			continue
		}
		if err := f.ApplyNative(item, v); err != nil {
			return nil, nil, fmt.Errorf("field %s of %s: %w", key, d.TableName, err)
		}
	}

	return item, deletedAt, nil
}
