package assistantapi

// Role identifies who authored a chat turn.
type Role string

const (
	RoleClient     Role = "client"
	RoleConsultant Role = "consultant"
)

// ChatMessage is a single turn as exchanged with the backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Message string `json:"message"`
}

type GenerateReplyRequest struct {
	ClientSequence string        `json:"clientSequence"`
	ChatHistory    []ChatMessage `json:"chatHistory"`
}

type GenerateReplyResponse struct {
	AIReply string `json:"aiReply"`
}

type ImproveAIRequest struct {
	ClientSequence  string        `json:"clientSequence"`
	ChatHistory     []ChatMessage `json:"chatHistory"`
	ConsultantReply string        `json:"consultantReply"`
}

type ImproveAIResponse struct {
	PredictedReply string `json:"predictedReply"`
	UpdatedPrompt  string `json:"updatedPrompt"`
}

type ImproveAIManuallyRequest struct {
	Instructions string `json:"instructions"`
}

type ImproveAIManuallyResponse struct {
	UpdatedPrompt string `json:"updatedPrompt"`
}

type GetPromptResponse struct {
	Prompt string `json:"prompt"`
}

type UpdatePromptRequest struct {
	Prompt string `json:"prompt"`
}

type UpdatePromptResponse struct {
	Message string `json:"message"`
	Prompt  string `json:"prompt"`
}
