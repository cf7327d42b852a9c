package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/models"
	"github.com/contaflow/proposal-app/internal/pricing"
)

// RegimeFilter narrows the regime listing by client type. Zero value lists all.
type RegimeFilter struct {
	ForIndividual bool
	ForCorporate  bool
}

// Repository is the read-only catalog surface the wizard consumes. Load failures
// surface to the caller as step-load errors; the core never retries them.
type Repository interface {
	GetClient(ctx context.Context, id uint) (*models.Client, error)
	ListActivityTypes(ctx context.Context) ([]models.ActivityType, error)
	ListTaxRegimes(ctx context.Context, filter RegimeFilter) ([]models.TaxRegime, error)
	ListRevenueBrackets(ctx context.Context, regimeID uint) ([]models.RevenueBracket, error)
	ListServicesForProposal(ctx context.Context, activityTypeID, regimeID uint) ([]models.Service, error)
	PricingCatalog(ctx context.Context) (pricing.Catalog, error)
}

type GormRepository struct {
	DB *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository { return &GormRepository{DB: db} }

func (r *GormRepository) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := r.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRepository) ListActivityTypes(ctx context.Context) ([]models.ActivityType, error) {
	var out []models.ActivityType
	if err := r.DB.WithContext(ctx).Order("code asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) ListTaxRegimes(ctx context.Context, filter RegimeFilter) ([]models.TaxRegime, error) {
	q := r.DB.WithContext(ctx).Order("code asc")
	if filter.ForIndividual {
		q = q.Where("for_individual = ?", true)
	}
	if filter.ForCorporate {
		q = q.Where("for_corporate = ?", true)
	}
	var out []models.TaxRegime
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepository) ListRevenueBrackets(ctx context.Context, regimeID uint) ([]models.RevenueBracket, error) {
	var out []models.RevenueBracket
	if err := r.DB.WithContext(ctx).Where("tax_regime_id = ?", regimeID).Order("min_revenue asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListServicesForProposal returns the services selectable for the given activity
// and regime. The special fiscal filter is applied per category by the caller
// via FilterCatalog; this listing is unrestricted.
func (r *GormRepository) ListServicesForProposal(ctx context.Context, activityTypeID, regimeID uint) ([]models.Service, error) {
	var out []models.Service
	if err := r.DB.WithContext(ctx).Order("category asc, code asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// PricingCatalog builds the serviceID -> (category, price) map the pricing
// engine groups by.
func (r *GormRepository) PricingCatalog(ctx context.Context) (pricing.Catalog, error) {
	var all []models.Service
	if err := r.DB.WithContext(ctx).Find(&all).Error; err != nil {
		return nil, err
	}
	cat := make(pricing.Catalog, len(all))
	for _, s := range all {
		cat[s.ID] = pricing.CatalogEntry{Category: s.Category, BasePrice: s.BasePrice}
	}
	return cat, nil
}

var _ Repository = (*GormRepository)(nil)
