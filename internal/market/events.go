package market

import (
	"time"

	"github.com/atmx/amm-market/internal/model"
)

// EventType identifies a state change.
type EventType string

const (
	EventTrade   EventType = "trade"
	EventTick    EventType = "tick"
	EventReset   EventType = "reset"
	EventCredit  EventType = "credit"
	EventAccount EventType = "account"
)

// Event describes a state change after it has been applied. Price is the pool
// price after the change.
type Event struct {
	Type      EventType    `json:"type"`
	Price     float64      `json:"price"`
	Trade     *model.Trade `json:"trade,omitempty"`
	Tick      *TickReport  `json:"tick,omitempty"`
	ActorID   string       `json:"actor_id,omitempty"`
	Amount    float64      `json:"amount,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Notifier receives events. Notify is called with the simulator lock held and
// must not block.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Notifiers fans an event out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(e)
		}
	}
}
