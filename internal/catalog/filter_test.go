package catalog

import (
	"testing"

	"github.com/contaflow/proposal-app/internal/models"
)

var (
	serviceActivity  = &models.ActivityType{ID: 1, Code: "SERV", Name: "Prestação de Serviços"}
	commerceActivity = &models.ActivityType{ID: 2, Code: "COM", Name: "Comércio"}

	fiscalServices = []models.Service{
		{ID: 1, Code: "NFSE", Name: "Nota Fiscal de Serviço", Category: models.CategoryFiscalDocument},
		{ID: 2, Code: "NFE", Name: "Nota Fiscal Eletrônica", Category: models.CategoryFiscalDocument},
		{ID: 3, Code: "NFCE", Name: "Nota Fiscal de Consumidor", Category: models.CategoryFiscalDocument},
		{ID: 4, Code: "CONT-MENSAL", Name: "Contabilidade Mensal", Category: models.CategoryAccounting},
	}
)

func TestIsSpecialFiscalFilter(t *testing.T) {
	tests := []struct {
		name     string
		activity *models.ActivityType
		category string
		want     bool
	}{
		{"service activity, fiscal category", serviceActivity, models.CategoryFiscalDocument, true},
		{"service activity by code only", &models.ActivityType{Code: "SERVICO-GERAL", Name: "Outros"}, models.CategoryFiscalDocument, true},
		{"commerce activity, fiscal category", commerceActivity, models.CategoryFiscalDocument, false},
		{"service activity, other category", serviceActivity, models.CategoryAccounting, false},
		{"nil activity", nil, models.CategoryFiscalDocument, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsSpecialFiscalFilter(tc.activity, tc.category); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilterCatalogRestrictsFiscalDocsForServiceActivity(t *testing.T) {
	out := FilterCatalog(fiscalServices, models.CategoryFiscalDocument, serviceActivity)
	if len(out) != 1 {
		t.Fatalf("expected single selectable service, got %d", len(out))
	}
	if out[0].Code != models.FiscalDocServiceCode {
		t.Fatalf("expected %s, got %s", models.FiscalDocServiceCode, out[0].Code)
	}
}

func TestFilterCatalogUnrestrictedForOtherActivities(t *testing.T) {
	out := FilterCatalog(fiscalServices, models.CategoryFiscalDocument, commerceActivity)
	if len(out) != 3 {
		t.Fatalf("expected all fiscal documents, got %d", len(out))
	}
}

func TestFilterCatalogAlwaysFiltersByCategory(t *testing.T) {
	out := FilterCatalog(fiscalServices, models.CategoryAccounting, serviceActivity)
	if len(out) != 1 || out[0].Code != "CONT-MENSAL" {
		t.Fatalf("unexpected accounting listing: %+v", out)
	}
}
