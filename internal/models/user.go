package models

// User is the identity projection the core works with. Profiles, friendships
// and account lifecycle live in an external system; the core only needs a
// stable id and a display username.
type User struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
}
