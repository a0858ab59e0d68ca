package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tier string

const (
	TierSingle Tier = "single"
	TierBulk   Tier = "bulk"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	CurrencyUSD    = "USD"
	ProviderManual = "manual"
)

// TierSpec prices one purchasable package of report credits.
type TierSpec struct {
	Tier        Tier   `json:"tier"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reports     int    `json:"reports"`
}

var catalog = []TierSpec{
	{Tier: TierSingle, AmountMinor: 200, Currency: CurrencyUSD, Reports: 1},
	{Tier: TierBulk, AmountMinor: 10000, Currency: CurrencyUSD, Reports: 100},
}

// Catalog lists the purchasable tiers, cheapest first.
func Catalog() []TierSpec {
	out := make([]TierSpec, len(catalog))
	copy(out, catalog)
	return out
}

func LookupTier(tier Tier) (TierSpec, bool) {
	normalized := Tier(strings.ToLower(strings.TrimSpace(string(tier))))
	for _, spec := range catalog {
		if spec.Tier == normalized {
			return spec, true
		}
	}
	return TierSpec{}, false
}

// Payment records one credit purchase.
type Payment struct {
	ID          snowflake.ID `json:"id,string" gorm:"primaryKey;autoIncrement:false"`
	RequesterID int64        `json:"requester_id" gorm:"not null;index"`
	Amount      int64        `json:"amount" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:varchar(8);not null"`
	Tier        Tier         `json:"tier" gorm:"type:varchar(16);not null"`
	Status      Status       `json:"status" gorm:"type:varchar(16);not null;index"`
	Provider    string       `json:"provider" gorm:"type:varchar(32);not null"`
	ExternalID  *string      `json:"external_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

func (Payment) TableName() string { return "payments" }

// FormatAmount renders minor units for display, e.g. 200 USD as "$2.00".
func FormatAmount(amountMinor int64, currency string) string {
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	whole, cents := amountMinor/100, amountMinor%100
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case CurrencyUSD, "":
		return fmt.Sprintf("%s$%d.%02d", sign, whole, cents)
	default:
		return fmt.Sprintf("%s%d.%02d %s", sign, whole, cents, strings.ToUpper(currency))
	}
}
