package domain

import (
	"time"
)

// EntryDirection marks whether an entry added or spent credits.
type EntryDirection string

const (
	EntryDirectionCredit EntryDirection = "credit"
	EntryDirectionDebit  EntryDirection = "debit"
)

type SourceType string

const (
	SourceTypePayment    SourceType = "payment"    // credits bought through a completed payment
	SourceTypeSubmission SourceType = "submission" // credit spent on a ticket submission
	SourceTypeManual     SourceType = "manual"     // operator adjustment from the CLI
	SourceTypeRefund     SourceType = "refund"     // credit returned when a submission produced no ticket
)

// Source identifies what caused a balance change.
type Source struct {
	Type SourceType
	Ref  string
}

// Balance is the prepaid report entitlement of one requester.
type Balance struct {
	RequesterID int64     `json:"requester_id" gorm:"primaryKey;autoIncrement:false"`
	Remaining   int       `json:"remaining" gorm:"not null;default:0"`
	Total       int       `json:"total" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Balance) TableName() string { return "balances" }

// Entry is an append-only record of one grant or consumption.
type Entry struct {
	ID           int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	RequesterID  int64          `json:"requester_id" gorm:"not null;index"`
	Direction    EntryDirection `json:"direction" gorm:"type:varchar(16);not null"`
	Amount       int            `json:"amount" gorm:"not null"`
	BalanceAfter int            `json:"balance_after" gorm:"not null"`
	SourceType   SourceType     `json:"source_type" gorm:"type:varchar(32);not null"`
	SourceRef    string         `json:"source_ref" gorm:"type:varchar(64)"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "balance_entries" }
