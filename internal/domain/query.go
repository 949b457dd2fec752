package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// UsersQuery describes filtering, searching and ordering of users listing.
type UsersQuery struct {
	Search       string
	SearchFields FieldNames
	Filters      map[string]bool
	Ordering     FieldNames
	Limit        int
	Offset       int
}

// SortableFields lists fields which can be used in query ordering.
var SortableFields = FieldNames{
	"id",
	"email",
	"username",
	"first_name",
	"last_name",
	"is_staff",
	"is_active",
	"is_superuser",
	"date_joined",
	"last_login",
}

// FilterableFields lists boolean fields usable as exact match filters.
var FilterableFields = FieldNames{"is_staff", "is_active", "is_superuser"}

// SearchableFields lists text fields usable in search.
var SearchableFields = FieldNames{"email", "username", "first_name", "last_name"}

// OrderingField splits ordering item into field name and direction.
func OrderingField(item string) (string, bool) {
	if strings.HasPrefix(item, "-") {
		return item[1:], true
	}
	return item, false
}

func (q UsersQuery) Validate() error {
	for _, f := range q.SearchFields {
		if !SearchableFields.Has(f) {
			return fmt.Errorf("invalid search field: %s", f)
		}
	}
	for f := range q.Filters {
		if !FilterableFields.Has(f) {
			return fmt.Errorf("invalid filter field: %s", f)
		}
	}
	for _, o := range q.Ordering {
		if name, _ := OrderingField(o); !SortableFields.Has(name) {
			return fmt.Errorf("invalid ordering field: %s", o)
		}
	}
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("invalid page range")
	}
	return nil
}

// Match reports whether user satisfies query search and filters.
func (q UsersQuery) Match(u User) bool {
	for field, expected := range q.Filters {
		v, ok := u.FieldValue(field)
		if !ok || v != expected {
			return false
		}
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))
	if search == "" || len(q.SearchFields) == 0 {
		return true
	}
	// every search term has to match at least one of the search fields
	for _, term := range strings.Fields(search) {
		found := false
		for _, field := range q.SearchFields {
			v, _ := u.FieldValue(field)
			if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), term) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func compareValues(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		return strings.Compare(av, b.(string))
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case *time.Time:
		bv := b.(*time.Time)
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return -1
		case bv == nil:
			return 1
		case av.Before(*bv):
			return -1
		case av.After(*bv):
			return 1
		}
	}
	return 0
}

// Sort orders users in place by query ordering.
func (q UsersQuery) Sort(users []User) {
	if len(q.Ordering) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, o := range q.Ordering {
			field, desc := OrderingField(o)
			a, _ := users[i].FieldValue(field)
			b, _ := users[j].FieldValue(field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Page returns query page window of given slice.
func (q UsersQuery) Page(users []User) []User {
	if q.Offset >= len(users) {
		return []User{}
	}
	end := len(users)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return users[q.Offset:end]
}
