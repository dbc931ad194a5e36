package events

// Translation lookup and AI chat sidebar events.
const (
	TranslationLookupRequested = "translation:lookup:requested"
	TranslationLookupCompleted = "translation:lookup:completed"
	TranslationLookupFailed    = "translation:lookup:failed"

	ChatMessageSent     = "ai-chat:message:sent"
	ChatMessageReceived = "ai-chat:message:received"
	ChatMessageFailed   = "ai-chat:message:failed"
	ChatPanelToggled    = "ai-chat:panel:toggled"
)

// Translation is the translation event table.
var Translation = map[string]any{
	"LOOKUP": []string{TranslationLookupRequested, TranslationLookupCompleted, TranslationLookupFailed},
}

// Chat is the AI chat sidebar event table.
var Chat = map[string]any{
	"MESSAGE": map[string]string{
		"SENT":     ChatMessageSent,
		"RECEIVED": ChatMessageReceived,
		"FAILED":   ChatMessageFailed,
	},
	"PANEL": ChatPanelToggled,
}
