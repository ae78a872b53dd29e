package bot

import (
	"strings"

	"github.com/splax/tipline/internal/domain"
)

// respondFreeText produces a canned reply for text that matched neither a
// command nor an open transfer session.
func respondFreeText(text string) domain.Reply {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "hello"), strings.Contains(lowered, "hi"):
		return domain.TextReply("Hello! How can I help you?")
	case strings.Contains(lowered, "bye"):
		return domain.TextReply("Goodbye! Have a great day!")
	case strings.Contains(lowered, "thank"):
		return domain.TextReply("You're welcome!")
	default:
		return domain.TextReply("I'm not sure how to respond to that. Try /help for the command list.")
	}
}
