package realtime

import (
	"context"
	"errors"
	"log/slog"

	"signal-relay/database"
	"signal-relay/models"
)

// Event names understood by the browser client.
const (
	EventLogin         = "login"
	EventUpdateNumber  = "updateNumber"
	EventCreateAlert   = "taoCanhBao"
	EventCreatePair    = "taoCanhBaoAndLink"
	EventDeletePair    = "deleteCanhBaoAndLink"
	EventCurrentNumber = "currentNumber"
	EventCurrentSignal = "currentSignal"
	EventPairsUpdated  = "receiveAllCanhBaoUpdated"
	EventCurrentLink   = "currentLink"
	EventLoginSuccess  = "loginSuccess"
	EventLoginFailed   = "loginFailed"
	EventAlertCreated  = "taoCanhBaoThanhCong"
	EventPairDeleted   = "deleteCanhBaoAndLinkSuccess"
)

// PairSource reads the joined pair list.
type PairSource interface {
	ListPairs(ctx context.Context) ([]models.AlertPair, error)
	FirstPair(ctx context.Context) (*models.AlertPair, error)
}

// CurrentLink is the payload of EventCurrentLink.
type CurrentLink struct {
	LinkBuy  string `json:"linkBuy"`
	LinkSell string `json:"linkSell"`
}

// Fanout pushes full pair snapshots after every mutation.
type Fanout struct {
	store PairSource
	hub   *Hub
}

func NewFanout(store PairSource, hub *Hub) *Fanout {
	return &Fanout{store: store, hub: hub}
}

// NotifyPairs broadcasts the whole pair list to every client. Errors are
// logged; the mutation that triggered the push has already happened.
func (f *Fanout) NotifyPairs(ctx context.Context) {
	pairs, err := f.store.ListPairs(ctx)
	if err != nil {
		slog.Error("Error fetching alert pairs for broadcast", "error", err)
		return
	}
	f.hub.Broadcast(EventPairsUpdated, pairs)
}

// SendPairs pushes the pair list to a single client.
func (f *Fanout) SendPairs(ctx context.Context, c *Client) {
	pairs, err := f.store.ListPairs(ctx)
	if err != nil {
		slog.Error("Error fetching alert pairs for client", "client", c.ID, "error", err)
		return
	}
	c.Emit(EventPairsUpdated, pairs)
}

// SendCurrentLink pushes the link of the lowest-index pair to a client.
func (f *Fanout) SendCurrentLink(ctx context.Context, c *Client) {
	pair, err := f.store.FirstPair(ctx)
	if errors.Is(err, database.ErrNotFound) || (err == nil && pair.Link == nil) {
		slog.Debug("No link found")
		return
	}
	if err != nil {
		slog.Error("Error fetching current link", "error", err)
		return
	}
	c.Emit(EventCurrentLink, CurrentLink{LinkBuy: pair.Link.LinkBuy, LinkSell: pair.Link.LinkSell})
}
