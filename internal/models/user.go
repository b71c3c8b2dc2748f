package models

// User is the profile document owned by the authentication subsystem.
// Only the fields the feed denormalizes are modelled here.
type User struct {
	Handle   string `json:"handle"`
	ImageURL string `json:"imageUrl"`
}

// Identity is the authenticated caller attached to every mutating operation
type Identity struct {
	Handle   string
	ImageURL string
}
