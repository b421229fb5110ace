package model

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/yadunandan004/dblogger/logerr"
)

// Filter columns.
const (
	FieldLevel     = "level"
	FieldFile      = "file"
	FieldFunction  = "func"
	FieldThreadID  = "thread_id"
	FieldTimestamp = "timestamp"
	FieldSourceID  = "source_id"
)

// Filter operators.
const (
	OpEq        = "="
	OpNe        = "!="
	OpNeAlt     = "<>"
	OpLt        = "<"
	OpGt        = ">"
	OpLte       = "<="
	OpGte       = ">="
	OpLike      = "LIKE"
	OpNotLike   = "NOT LIKE"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

var allowedOps = map[string]struct{}{
	OpEq: {}, OpNe: {}, OpNeAlt: {}, OpLt: {}, OpGt: {}, OpLte: {}, OpGte: {},
	OpLike: {}, OpNotLike: {}, OpIn: {}, OpNotIn: {}, OpIsNull: {}, OpIsNotNull: {},
}

var allowedFields = map[string]struct{}{
	FieldLevel: {}, FieldFile: {}, FieldFunction: {}, FieldThreadID: {}, FieldTimestamp: {}, FieldSourceID: {},
}

// Filter is one predicate of a conjunctive read query.
type Filter struct {
	Field string
	Op    string
	Value any
}

func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func Between(field string, from, to any) []Filter {
	return []Filter{
		{Field: field, Op: OpGte, Value: from},
		{Field: field, Op: OpLte, Value: to},
	}
}

// NormalizeOp trims, upper-cases and collapses internal whitespace.
func NormalizeOp(op string) string {
	return strings.Join(strings.Fields(strings.ToUpper(op)), " ")
}

func IsAllowedOp(op string) bool {
	_, ok := allowedOps[NormalizeOp(op)]
	return ok
}

func IsAllowedField(field string) bool {
	_, ok := allowedFields[strings.TrimSpace(field)]
	return ok
}

// Validate checks the filter against the closed operator and log column sets.
func (f Filter) Validate() error {
	if !IsAllowedField(f.Field) {
		return logerr.Errorf(logerr.KindInvalidArgument, "filter", "unsupported filter field %q", f.Field)
	}
	return f.ValidateOp()
}

// ValidateOp checks only the operator and the value arity it needs.
func (f Filter) ValidateOp() error {
	if strings.TrimSpace(f.Field) == "" {
		return logerr.Errorf(logerr.KindInvalidArgument, "filter", "filter field is empty")
	}
	op := NormalizeOp(f.Op)
	if _, ok := allowedOps[op]; !ok {
		return logerr.Errorf(logerr.KindInvalidArgument, "filter", "unsupported filter operator %q", f.Op)
	}
	switch op {
	case OpIsNull, OpIsNotNull:
		return nil
	case OpIn, OpNotIn:
		if len(f.Values()) == 0 {
			return logerr.Errorf(logerr.KindInvalidArgument, "filter", "%s on %q needs at least one value", op, f.Field)
		}
	default:
		if f.Value == nil {
			return logerr.Errorf(logerr.KindInvalidArgument, "filter", "%s on %q needs a value", op, f.Field)
		}
	}
	return nil
}

// Values flattens a slice Value into its elements; scalars become a one-element slice.
func (f Filter) Values() []any {
	if f.Value == nil {
		return nil
	}
	rv := reflect.ValueOf(f.Value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{f.Value}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func (f Filter) String() string {
	op := NormalizeOp(f.Op)
	if op == OpIsNull || op == OpIsNotNull {
		return f.Field + " " + op
	}
	return fmt.Sprintf("%s %s %v", f.Field, op, f.Value)
}

func ValidateOps(filters []Filter) error {
	for _, f := range filters {
		if err := f.ValidateOp(); err != nil {
			return err
		}
	}
	return nil
}

func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}
