// Package inmemdb implements the repositories in memory. It backs the API tests and the `memory` database engine.
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
)

type (
	DB struct {
		user       *table[user.User]
		student    *table[school.Student]
		teacher    *table[school.Teacher]
		course     *table[school.Course]
		assignment *table[school.Assignment]
		evaluation *table[evaluation.Evaluation]
	}

	table[T any] struct {
		sync.RWMutex
		rows map[int]T
		pk   int
	}

	// comparator returns a negative number when a < b, a positive one when a > b and 0 otherwise.
	comparator[T any] func(a, b T) int
)

func Open() *DB {
	return &DB{
		user:       newTable[user.User](),
		student:    newTable[school.Student](),
		teacher:    newTable[school.Teacher](),
		course:     newTable[school.Course](),
		assignment: newTable[school.Assignment](),
		evaluation: newTable[evaluation.Evaluation](),
	}
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[int]T)}
}

func (t *table[T]) nextID() int {
	t.pk++
	return t.pk
}

// all returns the rows ordered by ID. Callers must hold the lock.
func (t *table[T]) all() []T {
	ids := make([]int, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	rows := make([]T, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, t.rows[id])
	}
	return rows
}

// deleteIDs removes the given rows and returns how many existed. Callers must hold the lock.
func (t *table[T]) deleteIDs(ids []int) int {
	var n int
	for _, id := range ids {
		if _, ok := t.rows[id]; ok {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

// orderBy sorts rows in place; unknown fields are ignored and ties keep the current order.
func orderBy[T any](rows []T, ordering []core.DBOrdering, fields map[string]comparator[T]) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := fields[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func withDefault(ordering []core.DBOrdering, def ...core.DBOrdering) []core.DBOrdering {
	if len(ordering) == 0 {
		return def
	}
	return ordering
}

func containsAny(search string, vals ...string) bool {
	for _, val := range vals {
		if core.ContainsFold(val, search) {
			return true
		}
	}
	return false
}
