package store

import "time"

type User struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Project is the per-project rollup row used by the dashboard listing.
type Project struct {
	Name       string
	BatchCount int
	LastSyncAt time.Time
}
