package audit

import "github.com/avreline/panelcore/internal/models/modelevent"

// Notifier is the single outbound event port of the core. Notify must never
// block and must never return delivery failures into calling code.
type Notifier interface {
	Notify(event modelevent.Event)
}
