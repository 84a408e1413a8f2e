package llm

// Role represents a chat message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single message in a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// Response is the result of a chat completion call.
type Response struct {
	Message Message
	Model   string
}

// Options tunes generation. Zero values leave the provider default.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int64
}

// SuggestionOptions mirrors the generation settings hints are tuned for.
func SuggestionOptions() Options {
	return Options{
		Temperature: 0.7,
		TopP:        0.95,
		MaxTokens:   1000,
	}
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
