package user

import "github.com/alecgard/planner/internal/isotime"

// User is a registered planner user. Name is immutable after creation.
type User struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	DisplayName  string       `json:"display_name"`
	CreationTime isotime.Time `json:"creation_time"`
}

// CreateUserInput holds the fields accepted when creating a user.
// DisplayName defaults to Name when blank; CreationTime defaults to now.
type CreateUserInput struct {
	Name         string        `json:"name"`
	DisplayName  string        `json:"display_name"`
	CreationTime *isotime.Time `json:"creation_time,omitempty"`
}

// UpdateUserInput holds optional fields for a partial user update. Name is
// accepted only when it equals the stored name.
type UpdateUserInput struct {
	Name        *string `json:"name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}
