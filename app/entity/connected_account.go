package entity

import (
	"database/sql"
	"time"
)

const (
	AccountStatusPending         = "PENDING"
	AccountStatusCreationSuccess = "CREATION_SUCCESS"
	AccountStatusCreationFailed  = "CREATION_FAILED"
)

// ConnectedAccount is a provider account linked to a local user. AccountID is the
// provider-assigned natural key.
type ConnectedAccount struct {
	ID          uint64
	AccountID   string
	UserID      uint64
	Provider    string
	Status      string
	AccountData sql.NullString
	ConnectedAt time.Time
	LastSync    sql.NullTime
	// EventAt is the provider's own event time, when the webhook carried one.
	EventAt sql.NullTime
}

type AccountStats struct {
	Total   int
	Active  int
	Pending int
}
