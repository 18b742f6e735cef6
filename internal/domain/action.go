package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OfferAction proposes selling a product to another party.
type OfferAction struct {
	Recipient    PartyID
	ProductID    int
	Price        decimal.Decimal
	FirstRefFee  decimal.Decimal
	SecondRefFee decimal.Decimal
}

// ReferralAction forwards a pending inbound transaction to a third party.
type ReferralAction struct {
	Recipient     PartyID
	TransactionID int64
}

// AcceptAction accepts a pending inbound offer or referral.
type AcceptAction struct {
	TransactionID int64
}

// ActionKind labels a submitted action in the journal and metrics.
type ActionKind string

const (
	ActionOffer    ActionKind = "offer"
	ActionReferral ActionKind = "referral"
	ActionAccept   ActionKind = "accept"
)

// ActionRecord is an audit entry for one submitted action and its outcome.
// Records are append-only; nothing reads them back into decisions.
type ActionRecord struct {
	ID            string          `json:"id"`
	Time          time.Time       `json:"time"`
	Kind          ActionKind      `json:"kind"`
	Period        int             `json:"period"`
	Recipient     PartyID         `json:"recipient,omitempty"`
	ProductID     int             `json:"product_id,omitempty"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	Price         decimal.Decimal `json:"price,omitempty"`
	Outcome       string          `json:"outcome"`
	Message       string          `json:"message,omitempty"`
}

// ActionRecordEntry pairs a journal record with its WAL index so stream
// consumers can resume from a position.
type ActionRecordEntry struct {
	Index  uint64       `json:"index"`
	Record ActionRecord `json:"record"`
}
