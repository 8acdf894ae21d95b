package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mozedu/mozedu/core/school"
)

type SchoolRepository struct {
	db *schoolTable
}

var _ school.Repository = (*SchoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) *SchoolRepository {
	return &SchoolRepository{db: db.school}
}

// AddChild stores `child`, generating its ID when missing.
func (repo *SchoolRepository) AddChild(child school.Child) school.Child {
	repo.db.Lock()
	defer repo.db.Unlock()

	if child.ID == "" {
		child.ID = uuid.New().String()
	}
	repo.db.children = append(repo.db.children, child)
	return child
}

// AddEvent stores `ev`, generating its ID when missing.
func (repo *SchoolRepository) AddEvent(ev school.Event) school.Event {
	repo.db.Lock()
	defer repo.db.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	repo.db.events = append(repo.db.events, ev)
	return ev
}

func (repo *SchoolRepository) ChildrenOf(_ context.Context, parentID string) ([]school.Child, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	children := make([]school.Child, 0)
	for _, c := range repo.db.children {
		if c.ParentID == parentID {
			children = append(children, c)
		}
	}
	return children, nil
}

func (repo *SchoolRepository) UpcomingEvents(_ context.Context, from time.Time, limit int) ([]school.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	events := make([]school.Event, 0)
	for _, ev := range repo.db.events {
		if !ev.Date.Before(from) {
			events = append(events, ev)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
