package models

// Like represents a like on an idea. At most one exists per (idea, user).
type Like struct {
	ID         string `json:"-"`
	IdeaID     string `json:"ideaId"`
	UserHandle string `json:"userHandle"`
}

// LikeID is the deterministic document id of the like userHandle puts on
// ideaID, so two concurrent likes by the same user collide in the store.
func LikeID(ideaID, userHandle string) string {
	return ideaID + "_" + userHandle
}
