package models

// Alert states. Inbound signals are stored verbatim, so a row may carry any
// string; only these three drive the easy-mode relay.
const (
	StateWait = "wait"
	StateBuy  = "buy"
	StateSell = "sell"
)

// IsTradeState reports whether s is a side that can be forwarded.
func IsTradeState(s string) bool {
	return s == StateBuy || s == StateSell
}
