package notification

import (
	"log"
	"strings"

	"fyne.io/fyne/v2"

	"screen-translate/src/logutil"
	"screen-translate/src/session"
)

// MaxBody is the longest notification body in runes before truncation.
const MaxBody = 200

// Sender is satisfied by fyne.App.
type Sender interface {
	SendNotification(*fyne.Notification)
}

// Notifier shows desktop notifications for finished sessions. A nil sender only logs.
type Notifier struct {
	sender Sender
	title  string
}

func New(sender Sender, title string) *Notifier {
	if title == "" {
		title = "Screen Translate"
	}
	return &Notifier{sender: sender, title: title}
}

// Result announces a terminal session result. Idle and running states are ignored.
func (n *Notifier) Result(res session.Result) {
	switch res.Status {
	case session.StatusSuccess:
		n.send(n.title, Truncate(res.TranslatedText, MaxBody))
	case session.StatusFailed:
		n.send(n.title+" - error", Truncate(res.ErrorMessage, MaxBody))
	}
}

// Error shows a one-off error, such as a failed startup check.
func (n *Notifier) Error(title, message string) {
	n.send(title, Truncate(message, MaxBody))
}

func (n *Notifier) send(title, body string) {
	if n.sender == nil {
		log.Printf("Notification: %s: %s", title, logutil.SanitizeForLogging(body))
		return
	}
	n.sender.SendNotification(fyne.NewNotification(title, body))
}

// Truncate shortens text to max runes, appending "..." when anything was cut.
func Truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
