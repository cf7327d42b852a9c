package db

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/contaflow/proposal-app/internal/models"
)

// SeedCatalog loads a development catalog: activity types, tax regimes with and
// without revenue brackets, and services across the four categories. Idempotent
// on the unique codes.
func SeedCatalog(db *gorm.DB) error {
	activityTypes := []models.ActivityType{
		{Code: "COM", Name: "Comércio", ForIndividual: false, ForCorporate: true},
		{Code: "SERV", Name: "Prestação de Serviços", ForIndividual: true, ForCorporate: true},
		{Code: "IND", Name: "Indústria", ForIndividual: false, ForCorporate: true},
	}
	for i := range activityTypes {
		if err := db.Where("code = ?", activityTypes[i].Code).FirstOrCreate(&activityTypes[i]).Error; err != nil {
			return err
		}
	}

	regimes := []models.TaxRegime{
		{Code: "MEI", Name: "Microempreendedor Individual", ForIndividual: true},
		{Code: "SN", Name: "Simples Nacional", ForCorporate: true},
		{Code: "LP", Name: "Lucro Presumido", ForCorporate: true},
	}
	for i := range regimes {
		if err := db.Where("code = ?", regimes[i].Code).FirstOrCreate(&regimes[i]).Error; err != nil {
			return err
		}
	}

	// Simples Nacional exposes brackets; MEI and Lucro Presumido expose none.
	var sn models.TaxRegime
	if err := db.First(&sn, "code = ?", "SN").Error; err != nil {
		return err
	}
	brackets := []models.RevenueBracket{
		{TaxRegimeID: sn.ID, Label: "Até R$ 180.000", MinRevenue: decimal.Zero, MaxRevenue: decimal.NewFromInt(180000)},
		{TaxRegimeID: sn.ID, Label: "R$ 180.000 a R$ 360.000", MinRevenue: decimal.NewFromInt(180000), MaxRevenue: decimal.NewFromInt(360000)},
		{TaxRegimeID: sn.ID, Label: "R$ 360.000 a R$ 720.000", MinRevenue: decimal.NewFromInt(360000), MaxRevenue: decimal.NewFromInt(720000)},
	}
	for i := range brackets {
		if err := db.Where("tax_regime_id = ? AND label = ?", brackets[i].TaxRegimeID, brackets[i].Label).
			FirstOrCreate(&brackets[i]).Error; err != nil {
			return err
		}
	}

	servicesSeed := []models.Service{
		{Code: "CONT-MENSAL", Name: "Contabilidade Mensal", Category: models.CategoryAccounting, Kind: models.ServiceKindQuantity, BasePrice: decimal.NewFromInt(150)},
		{Code: "BALANCO", Name: "Balanço Anual", Category: models.CategoryAccounting, Kind: models.ServiceKindBoolean, BasePrice: decimal.NewFromInt(800)},
		{Code: "NFSE", Name: "Nota Fiscal de Serviço Eletrônica", Category: models.CategoryFiscalDocument, Kind: models.ServiceKindBoolean, BasePrice: decimal.NewFromInt(90)},
		{Code: "NFE", Name: "Nota Fiscal Eletrônica", Category: models.CategoryFiscalDocument, Kind: models.ServiceKindBoolean, BasePrice: decimal.NewFromInt(90)},
		{Code: "NFCE", Name: "Nota Fiscal de Consumidor", Category: models.CategoryFiscalDocument, Kind: models.ServiceKindBoolean, BasePrice: decimal.NewFromInt(70)},
		{Code: "ALT-CONTRATO", Name: "Alteração Contratual", Category: models.CategoryCorporate, Kind: models.ServiceKindSingleWithExtras, BasePrice: decimal.NewFromInt(350)},
		{Code: "FOLHA", Name: "Folha de Pagamento (por funcionário)", Category: models.CategoryPayroll, Kind: models.ServiceKindQuantity, BasePrice: decimal.NewFromInt(35)},
		{Code: "PROLAB", Name: "Pró-labore", Category: models.CategoryPayroll, Kind: models.ServiceKindQuantity, BasePrice: decimal.NewFromInt(25)},
	}
	for i := range servicesSeed {
		if err := db.Where("code = ?", servicesSeed[i].Code).FirstOrCreate(&servicesSeed[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
