package domain

// Choice is a labeled interactive affordance attached to a reply. Data is the
// payload the transport sends back when the user taps the choice; rendering
// is the transport's concern.
type Choice struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Reply is the outbound message emitted by the command router.
type Reply struct {
	Text    string   `json:"text"`
	Choices []Choice `json:"choices,omitempty"`
}

// TextReply builds a plain text reply.
func TextReply(text string) Reply {
	return Reply{Text: text}
}
