package model

import "time"

// SessionFilter narrows an admin session listing. Zero fields match anything.
type SessionFilter struct {
	Status      Status
	DocType     DocType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// Window returns the effective creation-time bounds. When both ends fall on
// the same calendar day the window widens to cover that whole day.
func (f SessionFilter) Window() (from, to *time.Time) {
	from, to = f.CreatedFrom, f.CreatedTo
	if from == nil || to == nil {
		return from, to
	}
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	if fy != ty || fm != tm || fd != td {
		return from, to
	}
	start := time.Date(fy, fm, fd, 0, 0, 0, 0, from.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return &start, &end
}

// Matches applies the filter to a session and the document types it holds.
func (f SessionFilter) Matches(s *Session, docTypes []DocType) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.DocType != "" {
		found := false
		for _, dt := range docTypes {
			if dt == f.DocType {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	from, to := f.Window()
	if from != nil && s.CreatedAt.Before(*from) {
		return false
	}
	if to != nil && s.CreatedAt.After(*to) {
		return false
	}
	return true
}

// SessionSummary is one row of an admin listing.
type SessionSummary struct {
	Session
	LatestDocType *DocType `json:"latest_document_type"`
}
