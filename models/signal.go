package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Signal actions
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// StrategyVote is a single strategy's verdict for a symbol.
type StrategyVote struct {
	Strategy string
	Vote     string
}

// VoteList is an ordered strategy -> vote mapping. It marshals to a JSON
// object and keeps the key order through encode/decode, which plain Go maps
// do not.
type VoteList []StrategyVote

// MarshalJSON encodes the votes as a JSON object in list order.
func (v VoteList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sv := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(sv.Strategy)
		if err != nil {
			return nil, err
		}
		vote, err := json.Marshal(sv.Vote)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(vote)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into votes, preserving key order.
func (v *VoteList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*v = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("strategy_votes: expected JSON object, got %v", tok)
	}

	out := VoteList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("strategy_votes: unexpected key %v", keyTok)
		}
		var vote string
		if err := dec.Decode(&vote); err != nil {
			return err
		}
		out = append(out, StrategyVote{Strategy: name, Vote: vote})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*v = out
	return nil
}

// Get returns the vote for a strategy name, or "" if absent.
func (v VoteList) Get(strategy string) string {
	for _, sv := range v {
		if sv.Strategy == strategy {
			return sv.Vote
		}
	}
	return ""
}

// Signal is a computed trading recommendation for one symbol at one instant.
// Optional numeric fields are pointers so a missing value stays missing on
// the wire instead of becoming zero.
type Signal struct {
	Timestamp       time.Time        `json:"timestamp"`
	Symbol          string           `json:"symbol"`
	Action          string           `json:"action"`
	Reason          string           `json:"reason,omitempty"`
	StrategyVotes   VoteList         `json:"strategy_votes,omitempty"`
	Confidence      int              `json:"confidence"`
	Timeframe       string           `json:"timeframe,omitempty"`
	EntryPrice      *decimal.Decimal `json:"entry_price,omitempty"`
	StopLossPct     *decimal.Decimal `json:"stop_loss_pct,omitempty"`
	TakeProfitPct   *decimal.Decimal `json:"take_profit_pct,omitempty"`
	StopLossPrice   *decimal.Decimal `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *decimal.Decimal `json:"take_profit_price,omitempty"`
	Quantity        int64            `json:"quantity"`
	PositionPercent *decimal.Decimal `json:"position_percent,omitempty"`
	Engine          string           `json:"engine,omitempty"`
	OrderType       string           `json:"order_type,omitempty"`
}

// SignalKey identifies a displayed signal row. A later signal with the same
// key replaces the earlier one in place.
type SignalKey struct {
	Timestamp string
	Symbol    string
}

// Key returns the (timestamp, symbol) identity of the signal.
func (s Signal) Key() SignalKey {
	return SignalKey{
		Timestamp: s.Timestamp.UTC().Format(time.RFC3339Nano),
		Symbol:    s.Symbol,
	}
}

// Stream message types carried over the /events stream.
const (
	MessageTypeHeartbeat = "heartbeat"
	MessageTypeSignal    = "signal"
	MessageTypeSignals   = "signals"
)

// StreamMessage is the tagged union sent over the event stream. Data stays
// raw until the type is known so unknown kinds can be skipped without
// decoding errors.
type StreamMessage struct {
	Type string          `json:"type"`
	TS   string          `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SignalRecord is the persisted form of a generated signal.
type SignalRecord struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Symbol          string          `gorm:"index:idx_symbol_ts" json:"symbol"`
	Timestamp       time.Time       `gorm:"index:idx_symbol_ts" json:"timestamp"`
	Action          string          `json:"action"`
	Confidence      int             `json:"confidence"`
	EntryPrice      decimal.Decimal `gorm:"type:decimal(20,6)" json:"entry_price"`
	StopLossPrice   decimal.Decimal `gorm:"type:decimal(20,6)" json:"stop_loss_price"`
	TakeProfitPrice decimal.Decimal `gorm:"type:decimal(20,6)" json:"take_profit_price"`
	Quantity        int64           `json:"quantity"`
	PositionPercent decimal.Decimal `gorm:"type:decimal(10,2)" json:"position_percent"`
	Votes           string          `json:"votes"` // JSON-encoded VoteList
	CreatedAt       time.Time       `json:"created_at"`
}

// NewSignalRecord flattens a Signal for storage.
func NewSignalRecord(s Signal) SignalRecord {
	rec := SignalRecord{
		Symbol:     s.Symbol,
		Timestamp:  s.Timestamp,
		Action:     s.Action,
		Confidence: s.Confidence,
		Quantity:   s.Quantity,
	}
	if s.EntryPrice != nil {
		rec.EntryPrice = *s.EntryPrice
	}
	if s.StopLossPrice != nil {
		rec.StopLossPrice = *s.StopLossPrice
	}
	if s.TakeProfitPrice != nil {
		rec.TakeProfitPrice = *s.TakeProfitPrice
	}
	if s.PositionPercent != nil {
		rec.PositionPercent = *s.PositionPercent
	}
	if len(s.StrategyVotes) > 0 {
		if votes, err := json.Marshal(s.StrategyVotes); err == nil {
			rec.Votes = string(votes)
		}
	}
	return rec
}

// MigrateSignalModels runs database migrations for signal-related models.
func MigrateSignalModels(db *gorm.DB) error {
	return db.AutoMigrate(&SignalRecord{})
}
