package orm

import (
	"fmt"
	"strings"

	"github.com/yadunandan004/dblogger/model"
)

func (q *QueryBuilder) filterSQL(f model.Filter, argCount *int) (string, []any) {
	col := q.d.QuoteIdent(strings.TrimSpace(f.Field))
	op := model.NormalizeOp(f.Op)

	switch op {
	case model.OpIsNull, model.OpIsNotNull:
		return col + " " + op, nil
	case model.OpIn, model.OpNotIn:
		values := f.Values()
		placeholders := make([]string, len(values))
		for i := range values {
			placeholders[i] = q.d.Placeholder(*argCount)
			*argCount++
		}
		return fmt.Sprintf("%s %s (%s)", col, op, strings.Join(placeholders, ", ")), values
	default:
		clause := fmt.Sprintf("%s %s %s", col, op, q.d.Placeholder(*argCount))
		*argCount++
		return clause, []any{f.Value}
	}
}

// Where validates every operator before emitting anything and returns
// " WHERE ..." (leading space) or "" for no filters. Placeholders start at firstArg.
func (q *QueryBuilder) Where(filters []model.Filter, firstArg int) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	if err := model.ValidateOps(filters); err != nil {
		return "", nil, err
	}

	clauses := make([]string, 0, len(filters))
	var allArgs []any
	argCount := firstArg
	for _, f := range filters {
		clause, args := q.filterSQL(f, &argCount)
		clauses = append(clauses, clause)
		allArgs = append(allArgs, args...)
	}
	return " WHERE " + strings.Join(clauses, " AND "), allArgs, nil
}
