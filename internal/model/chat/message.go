package chat

// Role identifies the author of a turn.
type Role string

const (
	RoleClient     Role = "client"
	RoleConsultant Role = "consultant"
)

// Message is one turn of the conversation as rendered in the chat view.
type Message struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

// Feedback is the local thumbs annotation of a consultant turn.
type Feedback string

const (
	FeedbackNone Feedback = "none"
	FeedbackUp   Feedback = "up"
	FeedbackDown Feedback = "down"
)

// ParseFeedback accepts "up", "down" and "none".
func ParseFeedback(raw string) (Feedback, bool) {
	switch Feedback(raw) {
	case FeedbackUp, FeedbackDown, FeedbackNone:
		return Feedback(raw), true
	default:
		return "", false
	}
}
