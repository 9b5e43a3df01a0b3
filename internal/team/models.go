package team

import "github.com/alecgard/planner/internal/isotime"

// Team groups users under one admin. The admin is always a member and a
// team never has more than validate.MaxTeamMembers members.
type Team struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Admin        string       `json:"admin"`
	Members      []string     `json:"members"`
	CreationTime isotime.Time `json:"creation_time"`
}

// HasMember reports whether userID is a member of the team.
func (t *Team) HasMember(userID string) bool {
	for _, m := range t.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// CreateTeamInput holds the fields required to create a team.
type CreateTeamInput struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Admin        string        `json:"admin"`
	CreationTime *isotime.Time `json:"creation_time,omitempty"`
}

// UpdateTeamInput holds optional fields for a partial team update. Blank
// values are treated as absent.
type UpdateTeamInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Admin       *string `json:"admin,omitempty"`
}
