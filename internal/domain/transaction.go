package domain

import "github.com/shopspring/decimal"

// TxStatus is the server-owned lifecycle state of a transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxExpired   TxStatus = "expired"
	TxPurchased TxStatus = "purchased"
	TxReferred  TxStatus = "referred"
)

// Transaction is an immutable snapshot of an offer or referral recorded by
// the market. The agent only reads transactions; the server transitions
// Status asynchronously between rounds.
type Transaction struct {
	ID           int64           `json:"id"`
	ProductID    int             `json:"product.id"`
	Price        decimal.Decimal `json:"price"`
	FirstRefFee  decimal.Decimal `json:"first.ref.fee"`
	SecondRefFee decimal.Decimal `json:"second.ref.fee"`
	PostPeriod   int             `json:"post.period"`
	RefDegree    int             `json:"ref.degree"`
	From         PartyID         `json:"from.id"`
	To           PartyID         `json:"to.id"`
	ReferID      int64           `json:"refer.id"`
	Status       TxStatus        `json:"-"`
}

// StatusBuckets partitions transactions of one direction by status.
type StatusBuckets struct {
	Pending   []Transaction `json:"pending"`
	Expired   []Transaction `json:"expired"`
	Purchased []Transaction `json:"purchased"`
	Referred  []Transaction `json:"referred"`
}

// TransactionBook is a snapshot of one side (inbound or outbound) of the
// party's transactions, split into direct offers and referrals.
type TransactionBook struct {
	Offers    StatusBuckets `json:"offers"`
	Referrals StatusBuckets `json:"referrals"`
}

// Normalize stamps each transaction with the status of the bucket it came
// from. The wire format carries status implicitly through bucketing.
func (b *TransactionBook) Normalize() {
	b.Offers.stamp()
	b.Referrals.stamp()
}

func (s *StatusBuckets) stamp() {
	for i := range s.Pending {
		s.Pending[i].Status = TxPending
	}
	for i := range s.Expired {
		s.Expired[i].Status = TxExpired
	}
	for i := range s.Purchased {
		s.Purchased[i].Status = TxPurchased
	}
	for i := range s.Referred {
		s.Referred[i].Status = TxReferred
	}
}

// PendingInbound returns pending offers followed by pending referrals,
// preserving server order within each bucket. The concatenation order matters
// downstream: quota truncation drops the tail.
func (b *TransactionBook) PendingInbound() []Transaction {
	pending := make([]Transaction, 0, len(b.Offers.Pending)+len(b.Referrals.Pending))
	pending = append(pending, b.Offers.Pending...)
	pending = append(pending, b.Referrals.Pending...)
	return pending
}
