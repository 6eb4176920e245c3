package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Kind enumerates the syncable field types. Anything else (nested structs,
// references, slices) is not syncable and cannot be declared as a field.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Encode renders a native value in its canonical, round-trippable text form.
func Encode(k Kind, v any) (string, error) {
	switch k {
	case KindString:
		s, ok := v.(string)
		if !ok {
			return "", encodeErr(k, v)
		}
		return s, nil
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return "", encodeErr(k, v)
		}
		return strconv.FormatBool(b), nil
	case KindInt:
		i, ok := v.(int64)
		if !ok {
			return "", encodeErr(k, v)
		}
		return strconv.FormatInt(i, 10), nil
	case KindFloat:
		f, ok := v.(float64)
		if !ok {
			return "", encodeErr(k, v)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case KindTime:
		t, ok := v.(time.Time)
		if !ok {
			return "", encodeErr(k, v)
		}
		return timex.FromTime(t).Format(), nil
	default:
		return "", fmt.Errorf("%w: unsupported kind %v", common.ErrConversion, k)
	}
}

// Decode parses a canonical string back into the native value for the kind.
func Decode(k Kind, s string) (any, error) {
	switch k {
	case KindString:
		return s, nil
	case KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, decodeErr(k, s)
		}
		return b, nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, decodeErr(k, s)
		}
		return i, nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, decodeErr(k, s)
		}
		return f, nil
	case KindTime:
		t, err := timex.Parse(s)
		if err != nil {
			return nil, decodeErr(k, s)
		}
		return t.Time, nil
	default:
		return nil, fmt.Errorf("%w: unsupported kind %v", common.ErrConversion, k)
	}
}

// Default returns the canonical form of the kind's zero value. A field whose
// canonical value equals Default is skipped when an add is tracked.
func Default(k Kind) string {
	switch k {
	case KindBool:
		return "false"
	case KindInt, KindFloat:
		return "0"
	case KindTime:
		return timex.Time{}.Format()
	default:
		return ""
	}
}

// Coerce normalizes a JSON-decoded value into the kind's native type:
// encoding/json turns every number into float64 and every timestamp into a
// string, so pulled records need this before a field setter can accept them.
func Coerce(k Kind, v any) (any, error) {
	switch k {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case float64:
			return int64(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case KindTime:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			parsed, err := timex.Parse(t)
			if err != nil {
				return nil, decodeErr(k, t)
			}
			return parsed.Time, nil
		}
	}
	return nil, fmt.Errorf("%w: cannot use %T as %v", common.ErrConversion, v, k)
}

func encodeErr(k Kind, v any) error {
	return fmt.Errorf("%w: cannot encode %T as %v", common.ErrConversion, v, k)
}

func decodeErr(k Kind, s string) error {
	return fmt.Errorf("%w: cannot decode %q as %v", common.ErrConversion, s, k)
}
