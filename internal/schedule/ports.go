package schedule

import "context"

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=mocks/ports_mock.go chatmate/internal/schedule Enhancer,Backend

// EnhanceOptions is the profile passed to the content enhancer.
type EnhanceOptions struct {
	Platform string `json:"platform"`
	Tone     string `json:"tone"`
}

// DefaultEnhanceProfile is used for every fire with AIEnhance set.
var DefaultEnhanceProfile = EnhanceOptions{Platform: "whatsapp", Tone: "friendly"}

// Enhancer rewrites message text before send. Failures are non-fatal.
type Enhancer interface {
	Enhance(ctx context.Context, text string, opts EnhanceOptions) (string, error)
}

// Backend delivers messages to a messaging platform.
type Backend interface {
	SendToNumber(ctx context.Context, phone, content string) (Receipt, error)
	SendToContact(ctx context.Context, contact, content string) (Receipt, error)
}
