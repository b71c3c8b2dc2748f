package models

import "time"

// Collection names shared by the store, the repositories and the triggers.
const (
	CollectionIdeas         = "ideas"
	CollectionComments      = "comments"
	CollectionLikes         = "likes"
	CollectionNotifications = "notifications"
	CollectionUsers         = "users"
)

// timestampLayout is fixed width so stored timestamps sort lexically in time order.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t the way createdAt fields are stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Idea represents a short text post in the feed
type Idea struct {
	ID           string `json:"ideaId,omitempty"`
	Body         string `json:"body"`
	UserHandle   string `json:"userHandle"`
	UserImage    string `json:"userImage"`
	CreatedAt    string `json:"createdAt"`
	LikeCount    int    `json:"likeCount"`
	CommentCount int    `json:"commentCount"`
}

// IdeaDetail is an idea together with its comments, newest first
type IdeaDetail struct {
	Idea
	Comments []Comment `json:"comments"`
}

// CreateIdeaRequest defines the request body for posting a new idea
type CreateIdeaRequest struct {
	Body string `json:"body" validate:"notblank"`
}
