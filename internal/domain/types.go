package domain

import "time"

// Movie is the canonical catalog record. Ownership fields are stamped at
// creation time and never rewritten afterwards; CreatedByEmail is a snapshot
// of the creator's address and may go stale relative to the identity provider.
type Movie struct {
	ID             string
	Title          string
	PublishingYear *int
	Poster         string
	CreatedBy      string
	CreatedByEmail string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MovieFields carries the mutable portion of a movie. Updates replace all
// three fields together; partial patches are not supported.
type MovieFields struct {
	Title          string
	PublishingYear *int
	Poster         string
}

// Pagination carries cursor paging inputs through service and repository layers.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage wraps a single page of results together with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// UploadGrant describes a short-lived signed URL permitting a single object write.
type UploadGrant struct {
	URL         string
	Method      string
	ObjectKey   string
	ContentType string
	Headers     map[string]string
	ExpiresAt   time.Time
}

// MovieEvent is emitted after successful catalog mutations.
type MovieEvent struct {
	Type       string    `json:"type"`
	MovieID    string    `json:"movieId"`
	ActorID    string    `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
}
