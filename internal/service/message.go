package service

import "time"

const (
	ErrorTTL           = 3 * time.Second
	SuccessTTL         = 3 * time.Second
	CheckoutSuccessTTL = 5 * time.Second
)

// Message временное уведомление. Нулевой ExpiresAt означает постоянный баннер.
type Message struct {
	Text      string
	ExpiresAt time.Time
}

func transient(text string, now time.Time, ttl time.Duration) Message {
	return Message{Text: text, ExpiresAt: now.Add(ttl)}
}

func persistent(text string) Message {
	return Message{Text: text}
}

// Visible reports whether the message should be rendered at now.
func (m Message) Visible(now time.Time) bool {
	if m.Text == "" {
		return false
	}
	return m.ExpiresAt.IsZero() || now.Before(m.ExpiresAt)
}

// TextAt returns the text if visible at now, "" otherwise.
func (m Message) TextAt(now time.Time) string {
	if m.Visible(now) {
		return m.Text
	}
	return ""
}
