package echoapi

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
)

const orderingParam = "ordering"

var errInvalidOrdering = errors.New("invalid ordering")

// Ordering is bound from `?ordering=-last_message_at,title`. A leading "-" sorts descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind fills the orderings from the query string. Fields not accepted by `allowed` are rejected.
func (ord *Ordering) Bind(ctx echo.Context, allowed func(field string) bool) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	seen := make(map[string]bool)
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if !allowed(field) {
			return core.NewValidationError(errInvalidOrdering,
				core.FieldError{Field: orderingParam, Error: fmt.Sprintf("%q: unknown field", field)})
		}
		if seen[field] {
			continue
		}
		seen[field] = true
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}
