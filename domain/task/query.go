package task

import "strings"

// SortOrder selects the ordering of a task listing.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price-asc"
	SortPriceDesc SortOrder = "price-desc"
	SortDeadline  SortOrder = "deadline"
)

// ParseSortOrder maps a client value to a SortOrder, defaulting to newest.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortPriceAsc:
		return SortPriceAsc
	case SortPriceDesc:
		return SortPriceDesc
	case SortDeadline:
		return SortDeadline
	}
	return SortNewest
}

// DefaultPageSize and MaxPageSize bound listing results.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Query holds the predicates of a task listing. Zero values mean "any".
type Query struct {
	Category   string    `json:"category,omitempty"`
	MinPrice   float64   `json:"minPrice,omitempty"`
	MaxPrice   float64   `json:"maxPrice,omitempty"`
	Statuses   []Status  `json:"statuses,omitempty"`
	OwnerID    string    `json:"ownerId,omitempty"`
	AssignedTo string    `json:"assignedTo,omitempty"`
	Search     string    `json:"q,omitempty"`
	Sort       SortOrder `json:"sort,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	Offset     int       `json:"offset,omitempty"`
}

// Normalize fills defaults and rejects contradictory predicates.
func (q Query) Normalize() (Query, error) {
	q.Category = strings.TrimSpace(q.Category)
	if strings.EqualFold(q.Category, "all") {
		q.Category = ""
	}
	q.Search = strings.TrimSpace(q.Search)
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	if q.MinPrice < 0 || q.MaxPrice < 0 {
		return q, invalid("price filters cannot be negative")
	}
	if q.MaxPrice > 0 && q.MinPrice > q.MaxPrice {
		return q, invalid("minPrice cannot exceed maxPrice")
	}
	for _, s := range q.Statuses {
		if !s.Valid() {
			return q, invalid("unknown status %q", s)
		}
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

// Matches reports whether t satisfies every predicate of q.
func (q Query) Matches(t *Task) bool {
	if q.Category != "" && t.Category != q.Category {
		return false
	}
	if q.MinPrice > 0 && t.Price < q.MinPrice {
		return false
	}
	if q.MaxPrice > 0 && t.Price > q.MaxPrice {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.OwnerID != "" && t.OwnerID != q.OwnerID {
		return false
	}
	if q.AssignedTo != "" && t.AssignedTo != q.AssignedTo {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Dashboard groups a user's tasks the way the profile page shows them.
type Dashboard struct {
	Posted    []*Task `json:"posted"`
	Completed []*Task `json:"completed"`
	Assigned  []*Task `json:"assigned"`
	Finished  []*Task `json:"finished"`
}

// DashboardQueries returns the four listings that make up userID's dashboard,
// in Posted, Completed, Assigned, Finished order.
func DashboardQueries(userID string) [4]Query {
	return [4]Query{
		{OwnerID: userID, Statuses: []Status{StatusOpen, StatusAssigned}},
		{OwnerID: userID, Statuses: []Status{StatusCompleted}},
		{AssignedTo: userID, Statuses: []Status{StatusAssigned}},
		{AssignedTo: userID, Statuses: []Status{StatusCompleted}},
	}
}
