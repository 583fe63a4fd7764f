package persistence

import (
	"fmt"
	"strings"
)

// setBuilder accumulates "column = $n" fragments for partial updates.
type setBuilder struct {
	parts []string
	args  []any
}

func newSetBuilder() *setBuilder { return &setBuilder{} }

// setOptional appends column when value is non-nil, without trimming.
func setOptional[T any](b *setBuilder, column string, value *T) {
	if value == nil {
		return
	}
	b.raw(column, *value)
}

func (b *setBuilder) add(column string, value *string) {
	if value == nil {
		return
	}
	b.raw(column, strings.TrimSpace(*value))
}

func (b *setBuilder) raw(column string, value any) {
	b.args = append(b.args, value)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// cast appends column with an explicit SQL cast, for enum columns.
func (b *setBuilder) cast(column string, value *string, sqlType string) {
	if value == nil {
		return
	}
	b.args = append(b.args, *value)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d::%s", column, len(b.args), sqlType))
}

func (b *setBuilder) empty() bool { return len(b.parts) == 0 }

func (b *setBuilder) sql() string { return strings.Join(b.parts, ", ") }

// insertBuilder accumulates columns for INSERT statements. Columns left out
// fall back to their database defaults.
type insertBuilder struct {
	cols         []string
	placeholders []string
	args         []any
}

func newInsertBuilder() *insertBuilder { return &insertBuilder{} }

func (b *insertBuilder) value(column string, value any) {
	b.castValue(column, value, "")
}

func (b *insertBuilder) castValue(column string, value any, sqlType string) {
	b.args = append(b.args, value)
	b.cols = append(b.cols, column)
	placeholder := fmt.Sprintf("$%d", len(b.args))
	if sqlType != "" {
		placeholder += "::" + sqlType
	}
	b.placeholders = append(b.placeholders, placeholder)
}

// insertOptional adds column only when value is non-nil.
func insertOptional[T any](b *insertBuilder, column string, value *T, sqlType string) {
	if value == nil {
		return
	}
	b.castValue(column, *value, sqlType)
}

// arg appends an extra argument (for WHERE clauses) and returns its placeholder.
func (b *insertBuilder) arg(value any) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *insertBuilder) columns() string { return strings.Join(b.cols, ", ") }

func (b *insertBuilder) values() string { return strings.Join(b.placeholders, ", ") }
