package chat

// ModelInfo describes one selectable language model.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	MaxTokens   int    `json:"maxTokens"`
}

var availableModels = []ModelInfo{
	{
		ID:          "gpt-4.1-nano",
		Name:        "GPT-4.1 Nano",
		Description: "Fast and efficient for most tasks",
		MaxTokens:   4096,
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Description: "Google's latest fast model",
		MaxTokens:   8192,
	},
	{
		ID:          "gpt-4o-mini",
		Name:        "GPT-4o Mini",
		Description: "Balanced performance and capability",
		MaxTokens:   16384,
	},
}

// Models returns the selectable model catalog.
func Models() []ModelInfo {
	out := make([]ModelInfo, len(availableModels))
	copy(out, availableModels)
	return out
}

func modelMaxTokens(id string) int {
	for _, m := range availableModels {
		if m.ID == id {
			return m.MaxTokens
		}
	}
	return 0
}
