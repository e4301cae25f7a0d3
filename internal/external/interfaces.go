package external

import "context"

// InstagramAPI is the surface of the Instagram Graph client that the
// automation responder depends on. Defined here so consumers can swap in
// fakes during tests.
type InstagramAPI interface {
	// ReplyToComment posts a reply to the given comment on behalf of the
	// connected Instagram account.
	ReplyToComment(ctx context.Context, accessToken, commentID, text string) error
	// SendMessage sends a direct message to the recipient within an existing
	// conversation window.
	SendMessage(ctx context.Context, accessToken, recipientID, text string) error
}

// TextGenerator produces response text from a prompt. Implementations must
// respect maxLength; the returned string is never longer than maxLength
// runes when maxLength > 0.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, incomingMessage string, maxLength int) (string, error)
}
