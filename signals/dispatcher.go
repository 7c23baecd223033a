// Package signals applies inbound webhook signals to alerts and decides which
// of them are relayed downstream.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"signal-relay/database"
	"signal-relay/models"
)

var (
	// ErrValidation marks a request that is missing a required field.
	ErrValidation = errors.New("validation failed")
	// ErrNotReady is returned when an easy signal arrives while the alert
	// it depends on is still waiting.
	ErrNotReady = errors.New("wait for trend first")
)

// ModeEasy relays a signal only when the alert already points the same way.
const ModeEasy = "easy"

// TrendAlertName is the alert consulted by easy signals that carry no pair.
const TrendAlertName = "trend"

// Store is the subset of the database layer the dispatcher needs.
type Store interface {
	GetPair(ctx context.Context, index uint) (*models.AlertPair, error)
	FindAlertByName(ctx context.Context, name string) (*models.Alert, error)
	SetStateByName(ctx context.Context, name, state string) (*models.Alert, error)
	SetState(ctx context.Context, alert *models.Alert, state string) error
	CompareAndSetState(ctx context.Context, alert *models.Alert, state string) (bool, error)
	ResetPair(ctx context.Context, index uint) (*models.AlertPair, error)
}

// Notifier pushes the current pair list to connected clients.
type Notifier interface {
	NotifyPairs(ctx context.Context)
}

// Forwarder delivers a payload to a downstream webhook without waiting.
type Forwarder interface {
	Forward(url string, payload []byte, astro bool)
}

// Action describes what a signal did.
type Action string

const (
	ActionUpdated Action = "updated"
	ActionBuy     Action = "buy"
	ActionSell    Action = "sell"
	ActionNone    Action = "none"
)

// PairSignal is an inbound signal addressed to one alert of a pair.
type PairSignal struct {
	Index   uint
	Slot    int // 1 or 2
	Mode    string
	Message string
	Payload []byte
	Astro   bool
}

// Result reports the outcome of a signal.
type Result struct {
	Action  Action        `json:"action"`
	Message string        `json:"message"`
	Alert   *models.Alert `json:"alert,omitempty"`
}

// FallbackURLs are the destinations for easy signals that carry no pair.
type FallbackURLs struct {
	Buy  string
	Sell string
}

func (f FallbackURLs) urlFor(state string) string {
	switch state {
	case models.StateBuy:
		return f.Buy
	case models.StateSell:
		return f.Sell
	}
	return ""
}

// Dispatcher applies signals to the alert store.
type Dispatcher struct {
	store     Store
	notifier  Notifier
	forwarder Forwarder
	fallback  FallbackURLs
}

func NewDispatcher(store Store, notifier Notifier, forwarder Forwarder, fallback FallbackURLs) *Dispatcher {
	return &Dispatcher{
		store:     store,
		notifier:  notifier,
		forwarder: forwarder,
		fallback:  fallback,
	}
}

// ApplyNamedSignal overwrites the state of the alerts called name.
// The state is stored as given.
func (d *Dispatcher) ApplyNamedSignal(ctx context.Context, name, state string) (*models.Alert, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: missing alert name", ErrValidation)
	}
	alert, err := d.store.SetStateByName(ctx, name, state)
	if err != nil {
		return nil, err
	}
	slog.Info("Alert state updated", "name", name, "state", state)
	d.notifier.NotifyPairs(ctx)
	return alert, nil
}

// ApplyPairSignal routes a signal to one alert of a pair.
func (d *Dispatcher) ApplyPairSignal(ctx context.Context, sig PairSignal) (*Result, error) {
	pair, err := d.store.GetPair(ctx, sig.Index)
	if err != nil {
		return nil, err
	}
	slot := sig.Slot
	if slot != 2 {
		slot = 1
	}
	alert := pair.AlertAt(slot)
	if alert == nil {
		return nil, fmt.Errorf("alert %d of pair %d: %w", slot, sig.Index, database.ErrNotFound)
	}

	if sig.Mode != ModeEasy {
		if err := d.store.SetState(ctx, alert, sig.Message); err != nil {
			return nil, err
		}
		slog.Info("Pair alert state updated", "index", sig.Index, "slot", slot, "state", sig.Message)
		d.notifier.NotifyPairs(ctx)
		return &Result{
			Action:  ActionUpdated,
			Message: fmt.Sprintf("Alert%d state updated to %s", slot, sig.Message),
			Alert:   alert,
		}, nil
	}

	var url string
	if pair.Link != nil {
		url = pair.Link.URLFor(sig.Message)
	}
	return d.relayEasy(ctx, alert, sig.Message, url, sig.Payload, sig.Astro)
}

// ApplyTrendSignal handles an easy signal against the shared trend alert and
// relays it to the configured fallback destinations.
func (d *Dispatcher) ApplyTrendSignal(ctx context.Context, message string, payload []byte, astro bool) (*Result, error) {
	alert, err := d.store.FindAlertByName(ctx, TrendAlertName)
	if err != nil {
		return nil, err
	}
	return d.relayEasy(ctx, alert, message, d.fallback.urlFor(message), payload, astro)
}

// ResetPair returns both alerts of a pair to wait.
func (d *Dispatcher) ResetPair(ctx context.Context, index uint) (*models.AlertPair, error) {
	pair, err := d.store.ResetPair(ctx, index)
	if err != nil {
		return nil, err
	}
	slog.Info("Alert pair reset", "index", index)
	d.notifier.NotifyPairs(ctx)
	return pair, nil
}

func (d *Dispatcher) relayEasy(ctx context.Context, alert *models.Alert, message, url string, payload []byte, astro bool) (*Result, error) {
	if alert.State == models.StateWait {
		return nil, ErrNotReady
	}
	if !models.IsTradeState(alert.State) || alert.State != message {
		return &Result{Action: ActionNone, Message: "No action taken"}, nil
	}

	// Only the request that flips the alert back to wait gets to forward.
	ok, err := d.store.CompareAndSetState(ctx, alert, models.StateWait)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotReady
	}

	d.forwarder.Forward(url, payload, astro)
	slog.Info("Signal relayed", "alert", alert.Name, "side", message, "url", url)
	d.notifier.NotifyPairs(ctx)

	return &Result{
		Action:  Action(message),
		Message: "lets " + message,
		Alert:   alert,
	}, nil
}
