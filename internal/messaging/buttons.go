package messaging

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/bcbklhi/escrow-express/internal/models"
)

// renderButtons appends a numbered option list to the body. Transports that
// cannot draw tappable controls present choices this way; a bare number in
// reply selects the option.
func renderButtons(body string, rows [][]models.Button) string {
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	i := 0
	for _, row := range rows {
		for _, btn := range row {
			i++
			fmt.Fprintf(&b, "\n%d. %s", i, btn.Label)
		}
	}
	b.WriteString("\n\nReply with a number to choose.")
	return b.String()
}

// liveButtons is the control set currently live in one chat.
type liveButtons struct {
	ref     models.MessageRef
	buttons []models.Button
}

// buttonTracker remembers the last control message per chat so numeric
// replies can be resolved into callbacks. A new control message in a chat
// replaces the previous one.
type buttonTracker struct {
	mu     sync.RWMutex
	byChat map[string]liveButtons
}

func newButtonTracker() *buttonTracker {
	return &buttonTracker{byChat: make(map[string]liveButtons)}
}

// Set records the live control set for the chat the message was sent to.
func (t *buttonTracker) Set(ref models.MessageRef, rows [][]models.Button) {
	flat := make([]models.Button, 0)
	for _, row := range rows {
		flat = append(flat, row...)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.byChat[ref.Chat] = liveButtons{ref: ref, buttons: flat}
}

// Update replaces the control set for an existing message reference.
func (t *buttonTracker) Update(ref models.MessageRef, rows [][]models.Button) {
	t.Set(ref, rows)
}

// Resolve maps a reply in a chat to a live button, if the reply is a valid
// option number.
func (t *buttonTracker) Resolve(chat, text string) (models.Button, models.MessageRef, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return models.Button{}, models.MessageRef{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	live, ok := t.byChat[chat]
	if !ok || n < 1 || n > len(live.buttons) {
		return models.Button{}, models.MessageRef{}, false
	}
	return live.buttons[n-1], live.ref, true
}
