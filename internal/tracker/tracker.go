// Package tracker turns record mutations into ordered operation log entries.
// The tracker is stateless and deterministic: given the same inputs it always
// emits the same operations (modulo their generated ids).
package tracker

import (
	"fmt"
	"reflect"
	"time"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type ChangeTracker struct{}

func New() *ChangeTracker {
	return &ChangeTracker{}
}

// TrackAdd produces the operations for a freshly inserted record: one Added
// entry followed by one Modified entry per field whose canonical value is not
// the type's default. The Added entry is stamped one millisecond before the
// record's UpdatedAt so it always sorts strictly before the field entries.
func (t *ChangeTracker) TrackAdd(desc *schema.Descriptor, item schema.Item) ([]operation.Operation, error) {
	if err := checkItem(desc, item); err != nil {
		return nil, err
	}

	base := item.Base()
	ops := []operation.Operation{
		operation.New(desc.TableName, base.ID, operation.Added,
			timex.FromTime(base.UpdatedAt.Add(-time.Millisecond))),
	}

	for i := range desc.Fields {
		f := &desc.Fields[i]
		value, err := f.Canonical(item)
		if err != nil {
			return nil, err
		}
		if value == schema.Default(f.Kind) {
			continue
		}

		op := operation.New(desc.TableName, base.ID, operation.Modified, base.UpdatedAt)
		op.Property = f.Name
		op.Value = &value
		ops = append(ops, op)
	}

	return ops, nil
}

// TrackDelete produces the single Deleted entry for a removed record.
func (t *ChangeTracker) TrackDelete(desc *schema.Descriptor, item schema.Item) (operation.Operation, error) {
	if err := checkItem(desc, item); err != nil {
		return operation.Operation{}, err
	}

	base := item.Base()
	return operation.New(desc.TableName, base.ID, operation.Deleted, base.UpdatedAt), nil
}

// TrackModify diffs two versions of the same record and produces one Modified
// entry per changed field, carrying both the new and the previous canonical
// value. Identical versions produce an empty result.
func (t *ChangeTracker) TrackModify(desc *schema.Descriptor, oldItem, newItem schema.Item) ([]operation.Operation, error) {
	if err := checkItem(desc, newItem); err != nil {
		return nil, err
	}
	if reflect.TypeOf(oldItem) != reflect.TypeOf(newItem) {
		return nil, fmt.Errorf("%w: cannot compare records of different types", common.ErrInvalidOperation)
	}
	if oldItem.Base().ID != newItem.Base().ID {
		return nil, fmt.Errorf("%w: cannot compare different records", common.ErrInvalidOperation)
	}

	base := newItem.Base()
	var ops []operation.Operation

	for i := range desc.Fields {
		f := &desc.Fields[i]
		oldValue, err := f.Canonical(oldItem)
		if err != nil {
			return nil, err
		}
		newValue, err := f.Canonical(newItem)
		if err != nil {
			return nil, err
		}
		if oldValue == newValue {
			continue
		}

		op := operation.New(desc.TableName, base.ID, operation.Modified, base.UpdatedAt)
		op.Property = f.Name
		op.Value = &newValue
		op.OldValue = &oldValue
		ops = append(ops, op)
	}

	return ops, nil
}

func checkItem(desc *schema.Descriptor, item schema.Item) error {
	if item.Base().ID == "" {
		return fmt.Errorf("%w: item without id", common.ErrInvalidArgument)
	}
	if desc.TableName != item.TableName() {
		return fmt.Errorf("%w: item of table %s tracked against descriptor %s",
			common.ErrInvalidOperation, item.TableName(), desc.TableName)
	}
	return nil
}
