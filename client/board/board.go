// Package board keeps the dashboard's signal table state: an explicit map
// from (timestamp, symbol) to a formatted row, plus the visual order. It has
// no UI dependency; the rendering layer is a plain projection of this state.
package board

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"signalboard/models"
)

// Action display classes. Anything that is not literally BUY or SELL falls
// into the hold class.
const (
	ClassBuy  = "buy"
	ClassSell = "sell"
	ClassHold = "hold"
)

// Row is the formatted, display-ready state of one signal.
type Row struct {
	Key         models.SignalKey
	Time        string
	Symbol      string
	Action      string
	ActionClass string
	EntryPrice  string
	Quantity    string
	PositionPct string
	TakeProfit  string
	StopLoss    string
	Confidence  string
	Votes       string
}

// Board is the keyed row set. New keys are inserted at the top; the visual
// order is insertion order, not a timestamp sort, so out-of-order upserts
// produce a visually out-of-order table. That matches the upstream behavior
// and is intended.
type Board struct {
	rows  map[models.SignalKey]*Row
	order []models.SignalKey
}

// New creates an empty board.
func New() *Board {
	return &Board{rows: make(map[models.SignalKey]*Row)}
}

// Upsert creates or replaces the row for the signal's key. Re-applying an
// identical signal leaves the rendered row unchanged.
func (b *Board) Upsert(sig models.Signal) *Row {
	key := sig.Key()
	row := buildRow(key, sig)

	if _, exists := b.rows[key]; !exists {
		b.order = append([]models.SignalKey{key}, b.order...)
	}
	b.rows[key] = row
	return row
}

// Apply dispatches one stream message into the board. Heartbeats and unknown
// message kinds are ignored; batches apply in array order, so a later entry
// sharing a key overwrites an earlier one.
func (b *Board) Apply(msg models.StreamMessage) error {
	switch msg.Type {
	case models.MessageTypeHeartbeat:
		return nil
	case models.MessageTypeSignal:
		var sig models.Signal
		if err := json.Unmarshal(msg.Data, &sig); err != nil {
			return fmt.Errorf("decode signal: %w", err)
		}
		b.Upsert(sig)
		return nil
	case models.MessageTypeSignals:
		var sigs []models.Signal
		if err := json.Unmarshal(msg.Data, &sigs); err != nil {
			return fmt.Errorf("decode signals batch: %w", err)
		}
		for _, sig := range sigs {
			b.Upsert(sig)
		}
		return nil
	default:
		// Forward compatible: unknown kinds are silently skipped.
		return nil
	}
}

// Len returns the number of distinct rows.
func (b *Board) Len() int {
	return len(b.rows)
}

// Get returns the row for a key, or nil.
func (b *Board) Get(key models.SignalKey) *Row {
	return b.rows[key]
}

// Rows returns the rows in display order, newest-inserted first.
func (b *Board) Rows() []*Row {
	out := make([]*Row, len(b.order))
	for i, key := range b.order {
		out[i] = b.rows[key]
	}
	return out
}

func buildRow(key models.SignalKey, sig models.Signal) *Row {
	return &Row{
		Key:         key,
		Time:        sig.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		Symbol:      sig.Symbol,
		Action:      sig.Action,
		ActionClass: ActionClass(sig.Action),
		EntryPrice:  FormatPrice(sig.EntryPrice),
		Quantity:    fmt.Sprintf("%d", sig.Quantity),
		PositionPct: FormatPercent(sig.PositionPercent),
		TakeProfit:  FormatPrice(sig.TakeProfitPrice),
		StopLoss:    FormatPrice(sig.StopLossPrice),
		Confidence:  fmt.Sprintf("%d%%", sig.Confidence),
		Votes:       FormatVotes(sig.StrategyVotes),
	}
}

// ActionClass maps an action value to its display class.
func ActionClass(action string) string {
	switch action {
	case models.ActionBuy:
		return ClassBuy
	case models.ActionSell:
		return ClassSell
	default:
		return ClassHold
	}
}

// FormatPrice renders a price with four decimals; a missing price renders
// as an empty string, never "0.0000".
func FormatPrice(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(4)
}

// FormatPercent renders a percentage with two decimals and a "%" suffix; a
// missing value renders as an empty string.
func FormatPercent(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.StringFixed(2) + "%"
}

// FormatVotes renders strategy votes as space-joined "name:vote" tokens in
// list order.
func FormatVotes(votes models.VoteList) string {
	if len(votes) == 0 {
		return ""
	}
	tokens := make([]string, len(votes))
	for i, v := range votes {
		tokens[i] = v.Strategy + ":" + v.Vote
	}
	return strings.Join(tokens, " ")
}

// ParseKeyTime is a convenience for tests and tools reading a key back into
// a time value.
func ParseKeyTime(key models.SignalKey) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, key.Timestamp)
}
