package chat

import (
	"sort"
	"strings"

	"github.com/mozedu/mozedu/core"
)

var sessionComparators = map[string]func(a, b Session) int{
	"created_at":      func(a, b Session) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"last_message_at": func(a, b Session) int { return a.LastMessageAt.Compare(b.LastMessageAt) },
	"title":           func(a, b Session) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) },
}

// IsSessionOrderingField reports whether sessions can be ordered by `field`.
func IsSessionOrderingField(field string) bool {
	_, ok := sessionComparators[field]
	return ok
}

// SortSessions sorts `sessions` in place for stores that cannot order them.
// Unknown fields are ignored; DefaultSessionOrdering applies when none is left. Ties are broken by ID.
func SortSessions(sessions []Session, ordering []core.DBOrdering) {
	orderings := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := sessionComparators[ord.Field]; ok {
			orderings = append(orderings, ord)
		}
	}
	if len(orderings) == 0 {
		orderings = append(orderings, DefaultSessionOrdering)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		for _, ord := range orderings {
			c := sessionComparators[ord.Field](sessions[i], sessions[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return sessions[i].ID < sessions[j].ID
	})
}
