package model

import "time"

// User is an account created the first time someone signs in through the
// identity provider.
//
// (Provider, Subject) identifies the external account and is unique. ID is our
// own xid so bookmark ownership never depends on a third party's numbering.
type User struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`  // "google" or "github"
	Subject   string    `json:"-"`         // provider's stable user id
	Email     string    `json:"email"`     // may be empty if the provider hides it
	Name      string    `json:"name"`      // display name, falls back to email
	AvatarURL string    `json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName is what the header shows next to "Signed in as".
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
