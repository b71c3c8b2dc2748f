package models

// Comment represents a comment on an idea
type Comment struct {
	ID         string `json:"-"`
	IdeaID     string `json:"ideaId"`
	Body       string `json:"body"`
	UserHandle string `json:"userHandle"`
	UserImage  string `json:"userImage"`
	CreatedAt  string `json:"createdAt"`
}

// CreateCommentRequest defines the request body for commenting on an idea
type CreateCommentRequest struct {
	Body string `json:"body" validate:"notblank"`
}
