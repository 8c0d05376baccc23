package audit

import "time"

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one entry in the audit timeline.
type TimelineRow struct {
	At       time.Time
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// PagingInfo carries simple pagination metadata.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}
