package postgres

import (
	"fmt"

	"github.com/alanyoungcy/marketengine/internal/domain"
)

// listWindow appends the time-window, ordering, limit, and offset clauses
// from opts to a base query ending in a WHERE clause. timeColumn is the
// column the window filters and orders on, newest first.
func listWindow(query, timeColumn string, opts domain.ListOpts) (string, []any) {
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND %s >= $%d", timeColumn, argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND %s <= $%d", timeColumn, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY %s DESC", timeColumn)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}
