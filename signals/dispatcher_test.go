package signals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"signal-relay/database"
	"signal-relay/models"
)

type forwardCall struct {
	url     string
	payload string
	astro   bool
}

type recordingForwarder struct {
	mu    sync.Mutex
	calls []forwardCall
}

func (f *recordingForwarder) Forward(url string, payload []byte, astro bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, forwardCall{url: url, payload: string(payload), astro: astro})
}

func (f *recordingForwarder) Calls() []forwardCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forwardCall(nil), f.calls...)
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) NotifyPairs(context.Context) {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
}

func (n *countingNotifier) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type fixture struct {
	store      *database.Store
	dispatcher *Dispatcher
	forwarder  *recordingForwarder
	notifier   *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	f := &fixture{
		store:     database.NewStore(db),
		forwarder: &recordingForwarder{},
		notifier:  &countingNotifier{},
	}
	f.dispatcher = NewDispatcher(f.store, f.notifier, f.forwarder, FallbackURLs{
		Buy:  "http://fallback/buy",
		Sell: "http://fallback/sell",
	})
	return f
}

func (f *fixture) pair(t *testing.T) *models.AlertPair {
	t.Helper()
	p, err := f.store.CreatePair(context.Background(), "A", "B", "http://u1", "http://u2")
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	return p
}

func (f *fixture) alertState(t *testing.T, index uint, slot int) string {
	t.Helper()
	p, err := f.store.GetPair(context.Background(), index)
	if err != nil {
		t.Fatalf("GetPair: %v", err)
	}
	return p.AlertAt(slot).State
}

func TestEasySignalScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pair(t)

	sig := PairSignal{Index: p.Index, Mode: ModeEasy, Message: "buy", Payload: []byte(`{"pair":"BTC"}`)}

	_, err := f.dispatcher.ApplyPairSignal(ctx, sig)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady while waiting, got %v", err)
	}
	if n := len(f.forwarder.Calls()); n != 0 {
		t.Fatalf("forwarded %d times while waiting", n)
	}

	if _, err := f.dispatcher.ApplyNamedSignal(ctx, "A", "buy"); err != nil {
		t.Fatalf("ApplyNamedSignal: %v", err)
	}

	res, err := f.dispatcher.ApplyPairSignal(ctx, sig)
	if err != nil {
		t.Fatalf("ApplyPairSignal: %v", err)
	}
	if res.Action != ActionBuy {
		t.Fatalf("action=%q, expected buy", res.Action)
	}

	calls := f.forwarder.Calls()
	if len(calls) != 1 {
		t.Fatalf("forward calls=%d, expected 1", len(calls))
	}
	if calls[0].url != "http://u1" || calls[0].payload != `{"pair":"BTC"}` {
		t.Fatalf("forward=%+v, expected payload to u1", calls[0])
	}
	if got := f.alertState(t, p.Index, 1); got != models.StateWait {
		t.Fatalf("alert state=%q, expected wait after relay", got)
	}
}

func TestEasySignalOutcomes(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		message   string
		wantErr   error
		wantURL   string
		wantState string
	}{
		{name: "buy matches", state: "buy", message: "buy", wantURL: "http://u1", wantState: "wait"},
		{name: "sell matches", state: "sell", message: "sell", wantURL: "http://u2", wantState: "wait"},
		{name: "buy against sell", state: "sell", message: "buy", wantState: "sell"},
		{name: "waiting", state: "wait", message: "sell", wantErr: ErrNotReady, wantState: "wait"},
		{name: "unknown state", state: "flat", message: "flat", wantState: "flat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.pair(t)

			if _, err := f.store.SetStateByName(ctx, "A", tt.state); err != nil {
				t.Fatalf("SetStateByName: %v", err)
			}

			res, err := f.dispatcher.ApplyPairSignal(ctx, PairSignal{Index: p.Index, Mode: ModeEasy, Message: tt.message})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("ApplyPairSignal: %v", err)
			}

			calls := f.forwarder.Calls()
			if tt.wantURL == "" {
				if len(calls) != 0 {
					t.Fatalf("unexpected forward %+v", calls)
				}
				if err == nil && res.Action != ActionNone {
					t.Fatalf("action=%q, expected none", res.Action)
				}
			} else if len(calls) != 1 || calls[0].url != tt.wantURL {
				t.Fatalf("forward=%+v, expected one call to %s", calls, tt.wantURL)
			}

			if got := f.alertState(t, p.Index, 1); got != tt.wantState {
				t.Fatalf("state=%q, expected %q", got, tt.wantState)
			}
		})
	}
}

func TestPairSignalNonEasySetsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pair(t)

	res, err := f.dispatcher.ApplyPairSignal(ctx, PairSignal{Index: p.Index, Mode: "superTrend", Message: "sell"})
	if err != nil {
		t.Fatalf("ApplyPairSignal: %v", err)
	}
	if res.Action != ActionUpdated {
		t.Fatalf("action=%q, expected updated", res.Action)
	}
	if got := f.alertState(t, p.Index, 1); got != "sell" {
		t.Fatalf("alert1 state=%q, expected sell", got)
	}

	if _, err := f.dispatcher.ApplyPairSignal(ctx, PairSignal{Index: p.Index, Slot: 2, Mode: "x", Message: "anything"}); err != nil {
		t.Fatalf("ApplyPairSignal slot 2: %v", err)
	}
	if got := f.alertState(t, p.Index, 2); got != "anything" {
		t.Fatalf("alert2 state=%q, expected the raw message", got)
	}

	if n := len(f.forwarder.Calls()); n != 0 {
		t.Fatalf("non-easy signals forwarded %d times", n)
	}
	if n := f.notifier.Count(); n != 2 {
		t.Fatalf("notifications=%d, expected 2", n)
	}
}

func TestPairSignalUnknownIndex(t *testing.T) {
	f := newFixture(t)

	_, err := f.dispatcher.ApplyPairSignal(context.Background(), PairSignal{Index: 42, Mode: ModeEasy, Message: "buy"})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := f.notifier.Count(); n != 0 {
		t.Fatalf("notifications=%d on failure, expected 0", n)
	}
}

func TestConcurrentEasySignalsForwardOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pair(t)

	if _, err := f.store.SetStateByName(ctx, "A", "buy"); err != nil {
		t.Fatalf("SetStateByName: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		notReady int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.dispatcher.ApplyPairSignal(ctx, PairSignal{Index: p.Index, Mode: ModeEasy, Message: "buy"})
			if errors.Is(err, ErrNotReady) {
				mu.Lock()
				notReady++
				mu.Unlock()
			} else if err != nil {
				t.Errorf("ApplyPairSignal: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := len(f.forwarder.Calls()); n != 1 {
		t.Fatalf("forward calls=%d, expected exactly 1", n)
	}
	if notReady != 3 {
		t.Fatalf("not ready=%d, expected 3", notReady)
	}
}

func TestApplyNamedSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.dispatcher.ApplyNamedSignal(ctx, "missing", "buy"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.dispatcher.ApplyNamedSignal(ctx, "", "buy"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	created, err := f.store.CreateAlert(ctx, "trend")
	if err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	alert, err := f.dispatcher.ApplyNamedSignal(ctx, "trend", "sell")
	if err != nil {
		t.Fatalf("ApplyNamedSignal: %v", err)
	}
	if alert.State != "sell" || !alert.LastUpdate.After(created.LastUpdate) {
		t.Fatalf("alert=%+v, expected sell with newer lastUpdate", alert)
	}
	if n := f.notifier.Count(); n != 1 {
		t.Fatalf("notifications=%d, expected 1", n)
	}
}

func TestApplyTrendSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.dispatcher.ApplyTrendSignal(ctx, "buy", nil, false); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without trend alert, got %v", err)
	}

	if _, err := f.store.CreateAlert(ctx, TrendAlertName); err != nil {
		t.Fatalf("CreateAlert: %v", err)
	}
	if _, err := f.dispatcher.ApplyTrendSignal(ctx, "buy", nil, false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	if _, err := f.store.SetStateByName(ctx, TrendAlertName, "sell"); err != nil {
		t.Fatalf("SetStateByName: %v", err)
	}
	res, err := f.dispatcher.ApplyTrendSignal(ctx, "sell", []byte(`{"content":"x"}`), true)
	if err != nil {
		t.Fatalf("ApplyTrendSignal: %v", err)
	}
	if res.Action != ActionSell {
		t.Fatalf("action=%q, expected sell", res.Action)
	}
	calls := f.forwarder.Calls()
	if len(calls) != 1 || calls[0].url != "http://fallback/sell" || !calls[0].astro {
		t.Fatalf("forward=%+v, expected astro call to sell fallback", calls)
	}
}

func TestResetPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.pair(t)

	if _, err := f.dispatcher.ApplyPairSignal(ctx, PairSignal{Index: p.Index, Mode: "set", Message: "buy"}); err != nil {
		t.Fatalf("ApplyPairSignal: %v", err)
	}
	if _, err := f.dispatcher.ResetPair(ctx, p.Index); err != nil {
		t.Fatalf("ResetPair: %v", err)
	}
	if got := f.alertState(t, p.Index, 1); got != models.StateWait {
		t.Fatalf("state=%q, expected wait", got)
	}
	if _, err := f.dispatcher.ResetPair(ctx, p.Index+1); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
