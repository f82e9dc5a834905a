package storage

import "time"

// ViewEvent is one recorded page view. Events are immutable once appended.
type ViewEvent struct {
	ID        int64
	Timestamp time.Time // second precision, assigned by the log
	Domain    string
	Page      string
}

// Filter narrows reads to a single domain. Matching is exact and
// case-sensitive; the empty domain is a valid value when ByDomain is set.
type Filter struct {
	Domain   string
	ByDomain bool
}

// DomainFilter returns a Filter matching exactly domain.
func DomainFilter(domain string) Filter {
	return Filter{Domain: domain, ByDomain: true}
}

// Snapshot is a mutually consistent read of the log: the aggregate counts
// and the most recent events all come from the same transaction.
type Snapshot struct {
	TotalEvents int64
	UniquePages int64
	Latest      []ViewEvent
}

// DailyCount is the number of views of one (domain, page) pair on one UTC day.
type DailyCount struct {
	Domain    string
	Page      string
	Date      string // YYYY-MM-DD
	ViewCount int64
}

// Overview holds aggregate statistics about the whole log.
type Overview struct {
	TotalEvents int64
	UniquePages int64
	Domains     int64
	OldestEvent time.Time
	NewestEvent time.Time
	TopDomains  []DomainCount
}

// DomainCount pairs a domain with its event count.
type DomainCount struct {
	Domain string
	Count  int64
}
