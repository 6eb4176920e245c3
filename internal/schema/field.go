package schema

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/opsync/internal/common"
)

// Field describes one syncable property of a record type: its wire name, its
// kind, and typed accessors. Schema-only descriptors (as used on the server)
// may leave Get and Set nil.
type Field struct {
	Name string
	Kind Kind

	// Get returns the field's native value from an item.
	Get func(item Item) any

	// Set assigns a native value (already coerced to the kind's type) to an
	// item.
	Set func(item Item, v any) error
}

// Canonical returns the item's value for this field in canonical text form.
func (f *Field) Canonical(item Item) (string, error) {
	if f.Get == nil {
		return "", fmt.Errorf("%w: field %s has no getter", common.ErrInvalidOperation, f.Name)
	}
	return Encode(f.Kind, f.Get(item))
}

// Apply decodes a canonical value and assigns it to the item.
func (f *Field) Apply(item Item, canonical string) error {
	v, err := Decode(f.Kind, canonical)
	if err != nil {
		return err
	}
	return f.set(item, v)
}

// ApplyNative coerces a JSON-decoded value and assigns it to the item.
func (f *Field) ApplyNative(item Item, v any) error {
	coerced, err := Coerce(f.Kind, v)
	if err != nil {
		return err
	}
	return f.set(item, coerced)
}

func (f *Field) set(item Item, v any) error {
	if f.Set == nil {
		return fmt.Errorf("%w: field %s has no setter", common.ErrInvalidOperation, f.Name)
	}
	return f.Set(item, v)
}

// StringField declares a string property.
func StringField[T Item](name string, get func(T) string, set func(T, string)) Field {
	return Field{
		Name: name,
		Kind: KindString,
		Get:  func(item Item) any { return get(item.(T)) },
		Set: func(item Item, v any) error {
			set(item.(T), v.(string))
			return nil
		},
	}
}

// BoolField declares a bool property.
func BoolField[T Item](name string, get func(T) bool, set func(T, bool)) Field {
	return Field{
		Name: name,
		Kind: KindBool,
		Get:  func(item Item) any { return get(item.(T)) },
		Set: func(item Item, v any) error {
			set(item.(T), v.(bool))
			return nil
		},
	}
}

// IntField declares an int64 property.
func IntField[T Item](name string, get func(T) int64, set func(T, int64)) Field {
	return Field{
		Name: name,
		Kind: KindInt,
		Get:  func(item Item) any { return get(item.(T)) },
		Set: func(item Item, v any) error {
			set(item.(T), v.(int64))
			return nil
		},
	}
}

// FloatField declares a float64 property.
func FloatField[T Item](name string, get func(T) float64, set func(T, float64)) Field {
	return Field{
		Name: name,
		Kind: KindFloat,
		Get:  func(item Item) any { return get(item.(T)) },
		Set: func(item Item, v any) error {
			set(item.(T), v.(float64))
			return nil
		},
	}
}

// TimeField declares a time.Time property.
func TimeField[T Item](name string, get func(T) time.Time, set func(T, time.Time)) Field {
	return Field{
		Name: name,
		Kind: KindTime,
		Get:  func(item Item) any { return get(item.(T)) },
		Set: func(item Item, v any) error {
			set(item.(T), v.(time.Time))
			return nil
		},
	}
}

// SchemaField declares a field by name and kind only, without accessors. The
// server registers tables this way: it converts values but never touches an
// application struct.
func SchemaField(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind}
}
