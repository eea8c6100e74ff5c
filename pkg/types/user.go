package types

import "time"

// User is an owner of captures. Authentication and authorization live
// outside the pipeline; the gateway only resolves identifiers.
type User struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
