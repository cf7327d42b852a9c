package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client entity
type Client struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"not null;index"`
	TaxID           string `gorm:"index"` // CPF ou CNPJ
	Email           string
	Phone           string
	OpensNewCompany bool // client intends to open a new legal entity
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ActivityType classifies the client's economic activity (commerce, services, industry...).
type ActivityType struct {
	ID            uint   `gorm:"primaryKey"`
	Code          string `gorm:"not null;uniqueIndex"`
	Name          string `gorm:"not null"`
	ForIndividual bool
	ForCorporate  bool
}

// TaxRegime is a fiscal regime (MEI, Simples Nacional, Lucro Presumido...).
type TaxRegime struct {
	ID            uint   `gorm:"primaryKey"`
	Code          string `gorm:"not null;uniqueIndex"`
	Name          string `gorm:"not null"`
	ForIndividual bool
	ForCorporate  bool
	Brackets      []RevenueBracket `gorm:"foreignKey:TaxRegimeID"`
}

// RevenueBracket is an annual revenue band within a regime. A regime may expose none.
type RevenueBracket struct {
	ID          uint            `gorm:"primaryKey"`
	TaxRegimeID uint            `gorm:"not null;index"`
	Label       string          `gorm:"not null"`
	MinRevenue  decimal.Decimal `gorm:"type:numeric"`
	MaxRevenue  decimal.Decimal `gorm:"type:numeric"`
}

// Service kinds, see ServiceEntry variants in the wizard package.
const (
	ServiceKindBoolean          = "boolean"            // wholly included or excluded, fixed price
	ServiceKindQuantity         = "quantity"           // scales with quantity
	ServiceKindSingleWithExtras = "single_with_extras" // single unit carrying a custom label
)

// Service catalog categories.
const (
	CategoryAccounting     = "contabil"
	CategoryFiscalDocument = "documento_fiscal"
	CategoryCorporate      = "societario"
	CategoryPayroll        = "departamento_pessoal"
)

// FiscalDocServiceCode is the service-oriented fiscal document (NFS-e). When the
// client's activity is service-oriented it is the only selectable code in the
// fiscal-document category.
const FiscalDocServiceCode = "NFSE"

// Service is a catalog entry selectable into a proposal.
type Service struct {
	ID        uint            `gorm:"primaryKey"`
	Code      string          `gorm:"not null;uniqueIndex"`
	Name      string          `gorm:"not null"`
	Category  string          `gorm:"not null;index"`
	Kind      string          `gorm:"not null;default:'quantity'"`
	BasePrice decimal.Decimal `gorm:"type:numeric"`
}

// Proposal statuses.
const (
	ProposalStatusDraft            = "draft"
	ProposalStatusFinalized        = "finalized"
	ProposalStatusAwaitingApproval = "awaiting_approval"
)

// Proposal is the finalized commercial proposal produced by the wizard.
type Proposal struct {
	ID               uint            `gorm:"primaryKey"`
	Number           string          `gorm:"uniqueIndex"`
	Status           string          `gorm:"not null"`
	ClientID         uint            `gorm:"not null;index"`
	Client           Client          `gorm:"foreignKey:ClientID"`
	ActivityTypeID   uint
	TaxRegimeID      uint
	RevenueBracketID uint
	Items            []ProposalItem  `gorm:"foreignKey:ProposalID"`
	DiscountPercent  decimal.Decimal `gorm:"type:numeric"`
	Notes            string
	SubtotalServices decimal.Decimal `gorm:"type:numeric"`
	OpeningFee       decimal.Decimal `gorm:"type:numeric"`
	OpeningFeeKind   string
	DiscountAmount   decimal.Decimal `gorm:"type:numeric"`
	FinalTotal       decimal.Decimal `gorm:"type:numeric"`
	AwaitingApproval bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type ProposalItem struct {
	ID         uint            `gorm:"primaryKey"`
	ProposalID uint            `gorm:"not null;index"`
	ServiceID  uint            `gorm:"not null"`
	Service    Service         `gorm:"foreignKey:ServiceID"`
	Quantity   int             `gorm:"not null"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric"`
	Subtotal   decimal.Decimal `gorm:"type:numeric"`
	Label      string          // optional custom label carried from service extras
}

// DraftRecord is a persisted per-step wizard snapshot used for recovery.
type DraftRecord struct {
	Key       string    `gorm:"primaryKey"`
	SessionID string    `gorm:"index"`
	Step      int       `gorm:"not null"`
	Payload   []byte    `gorm:"not null"`
	Timestamp time.Time `gorm:"index"`
}
