package domain

import "time"

// User is the application database's record of an account. Credentials,
// profile and roles live in the IDM; IDMID links the two.
type User struct {
	ID             string // ULID
	IDMID          string
	Username       string // email at creation time
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
