package app

// MessageStore persists chat messages across runs.
//
// Implementations must return messages for a model ordered by CreatedAt
// ascending, and must filter strictly by model name.
type MessageStore interface {
	Insert(msg ChatMessage) error
	Delete(msg ChatMessage) error
	Fetch(modelName string) ([]ChatMessage, error)
}
