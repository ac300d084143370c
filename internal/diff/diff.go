// Package diff computes normalized field-level changes between a stored
// record and a partial update.
package diff

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/workspace-tracker/internal/domain"
)

// Kind selects how a field's values are normalized before comparison.
type Kind int

const (
	KindText Kind = iota
	KindEnum
	KindDate
)

// Field declares a tracked field. The order of a []Field is the order
// changes are reported in.
type Field struct {
	Name string
	Kind Kind
}

// Patch holds the keys a caller asked to change. A key mapped to nil clears
// the field; a missing key leaves it alone.
type Patch map[string]any

// TimestampLayout is the canonical form dates are compared and stored in.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TicketFields lists the tracked ticket fields in declaration order.
var TicketFields = []Field{
	{Name: domain.FieldTitle, Kind: KindText},
	{Name: domain.FieldDescription, Kind: KindText},
	{Name: domain.FieldStatus, Kind: KindEnum},
	{Name: domain.FieldPriority, Kind: KindEnum},
	{Name: domain.FieldAssignedTo, Kind: KindText},
	{Name: domain.FieldDueDate, Kind: KindDate},
	{Name: domain.FieldParentID, Kind: KindText},
	{Name: domain.FieldTicketType, Kind: KindEnum},
}

// Diff returns one change per field present in patch whose normalized value
// differs from current. Fields are visited in the order given, never in map
// order. An empty result means the update is a no-op.
func Diff(current map[string]any, patch Patch, fields []Field) []domain.FieldChange {
	changes := make([]domain.FieldChange, 0, len(patch))
	for _, f := range fields {
		proposed, ok := patch[f.Name]
		if !ok {
			continue
		}
		oldNorm := Normalize(f.Kind, current[f.Name])
		newNorm := Normalize(f.Kind, proposed)
		if equal(oldNorm, newNorm) {
			continue
		}
		changes = append(changes, domain.FieldChange{Field: f.Name, OldValue: oldNorm, NewValue: newNorm})
	}
	return changes
}

// Snapshot reports every field of current as a change from nil, the shape
// recorded when a record is first created.
func Snapshot(current map[string]any, fields []Field) []domain.FieldChange {
	changes := make([]domain.FieldChange, 0, len(fields))
	for _, f := range fields {
		changes = append(changes, domain.FieldChange{Field: f.Name, NewValue: Normalize(f.Kind, current[f.Name])})
	}
	return changes
}

// Normalize converts v to its canonical comparable string, or nil when the
// value is empty or, for dates, unparseable.
func Normalize(kind Kind, v any) *string {
	v = deref(v)
	if v == nil {
		return nil
	}
	switch kind {
	case KindDate:
		t, ok := parseDate(v)
		if !ok {
			return nil
		}
		s := t.UTC().Format(TimestampLayout)
		return &s
	case KindEnum:
		s := strings.ToUpper(stringOf(v))
		return &s
	default:
		s := stringOf(v)
		return &s
	}
}

func deref(v any) any {
	switch x := v.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	default:
		return v
	}
}

func stringOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func parseDate(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case string:
		raw := strings.TrimSpace(x)
		if raw == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case int64:
		return time.UnixMilli(x), true
	default:
		return time.Time{}, false
	}
}

func equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
