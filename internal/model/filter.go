package model

import "strings"

// DefaultPageLimit is applied when a filter does not set a limit.
const DefaultPageLimit = 50

// AlertFilter selects alerts on the query surface. Zero-valued fields
// are ignored. Results are sorted newest-first and paginated.
type AlertFilter struct {
	Severity Severity
	Status   AlertStatus
	Source   string
	Tag      string
	Search   string
	Page     int
	Limit    int
}

// Matches reports whether the alert satisfies every set predicate.
func (f *AlertFilter) Matches(a *Alert) bool {
	if f.Severity != "" && a.Severity != f.Severity {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Source != "" && a.Source != f.Source {
		return false
	}
	if f.Tag != "" && !containsTag(a.Tags, f.Tag) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) {
			return false
		}
	}
	return true
}

// EventFilter selects events on the query surface. Zero-valued fields
// are ignored. Results are sorted newest-first and paginated.
type EventFilter struct {
	Severity Severity
	Type     EventType
	Source   string
	Tag      string
	Search   string
	Page     int
	Limit    int
}

// Matches reports whether the event satisfies every set predicate.
func (f *EventFilter) Matches(e *Event) bool {
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Source != "" && e.Source != f.Source {
		return false
	}
	if f.Tag != "" && !containsTag(e.Tags, f.Tag) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) &&
			!strings.Contains(strings.ToLower(e.Summary), needle) {
			return false
		}
	}
	return true
}

// Paginate bounds-checks page/limit and returns the slice window
// [start, end) to apply to a result set of the given length.
func Paginate(page, limit, length int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= length {
		return 0, 0
	}
	end := start + limit
	if end > length {
		end = length
	}
	return start, end
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
