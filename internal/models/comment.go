package models

import "time"

// StatusPending is the only status a queued comment ever carries.
const StatusPending = "pending"

// CommentInput is the body of a comment submission.
type CommentInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Text  string `json:"text"`
}

// Comment is a comment accepted by the server.
type Comment struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingComment is a submission held locally until the server accepts it.
type PendingComment struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// Input returns the fields forwarded to the server.
func (p PendingComment) Input() CommentInput {
	return CommentInput{Name: p.Name, Email: p.Email, Text: p.Text}
}

// APIResponse is the envelope every JSON endpoint answers with.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type CommentsResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Comments []Comment `json:"comments"`
}

const (
	EventCommentCreated = "comment.created"
	EventHello          = "hello"
)

// StreamEvent is pushed to live-stream subscribers and published to the
// message broker.
type StreamEvent struct {
	Type    string    `json:"type"`
	Comment *Comment  `json:"comment,omitempty"`
	At      time.Time `json:"at"`
}
