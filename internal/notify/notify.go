// Package notify shows a desktop notification for popup requests.
package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"

	"focusguard/internal/events"
	"focusguard/internal/logger"
)

// Notifier turns popup-request events into desktop notifications.
type Notifier struct {
	notify func(title, message string) error
	async  bool
}

// New creates a notifier backed by beeep.
func New() *Notifier {
	return &Notifier{notify: func(title, message string) error {
		return beeep.Notify(title, message, "")
	}, async: true}
}

// Subscribe registers the notifier on bus.
func (n *Notifier) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.PopupRequest, n.Handle)
}

// Handle shows the notification for e. The bus delivers synchronously, so
// the notification is sent on its own goroutine.
func (n *Notifier) Handle(e events.Event) {
	if e.Type != events.PopupRequest {
		return
	}
	title, body := Message(e)
	if !n.async {
		n.send(title, body)
		return
	}
	go n.send(title, body)
}

func (n *Notifier) send(title, body string) {
	if err := n.notify(title, body); err != nil {
		logger.Warn("failed to show notification", "error", err)
	}
}

// Message builds the notification text for a popup request.
func Message(e events.Event) (string, string) {
	title := "Stay focused?"
	app := e.AppIdentifier
	if app == "" {
		app = "this app"
	}
	body := fmt.Sprintf("You switched to %s", app)
	if e.Category != "" {
		body = fmt.Sprintf("You switched to %s (%s)", app, e.Category)
	}
	return title, body + ". Get back to work or take a break."
}
