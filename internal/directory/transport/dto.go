// Package transport defines request and response shapes for the
// directory module.
package transport

// UserPayload is one directory row submitted by the admin UI.
type UserPayload struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"first_name" validate:"max=200"`
	LastName  string `json:"last_name" validate:"max=200"`
	Branch    string `json:"branch" validate:"max=200"`
}

// SaveUsersRequest saves a batch of directory rows. Rows without a
// branch are ignored rather than rejected, matching the engine's
// "only branch-bearing rows reach upsert" contract.
type SaveUsersRequest struct {
	Users []UserPayload `json:"users" validate:"required,dive"`
}

// SaveUsersResponse reports how many rows were written.
type SaveUsersResponse struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
}

// DeactivateRequest soft-deletes directory rows by email.
type DeactivateRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,required"`
}

// DeactivateResponse reports how many rows were deactivated.
type DeactivateResponse struct {
	Deactivated int64 `json:"deactivated"`
}

// UserResponse is one directory row in API responses.
type UserResponse struct {
	Email      string  `json:"email"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Branch     string  `json:"branch"`
	IsActive   bool    `json:"is_active"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	LastSeenAt *string `json:"last_seen_at"`
}

// ListUsersResponse is the full directory for one vendor.
type ListUsersResponse struct {
	Vendor string         `json:"vendor"`
	Users  []UserResponse `json:"users"`
}
