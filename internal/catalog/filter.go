package catalog

import (
	"strings"

	"github.com/contaflow/proposal-app/internal/models"
)

// serviceActivityMarkers identify a service-oriented economic activity by its
// name or code.
var serviceActivityMarkers = []string{"servico", "serviço", "service"}

// IsSpecialFiscalFilter reports whether browsing the given category under the
// given activity type restricts the selectable set. The restriction applies only
// to the fiscal-document category when the activity is service-oriented: such
// clients issue a single kind of fiscal document (NFS-e), so every other code is
// hidden. Kept as an explicit predicate because it silently changes what the
// operator is allowed to pick.
func IsSpecialFiscalFilter(at *models.ActivityType, category string) bool {
	if at == nil || category != models.CategoryFiscalDocument {
		return false
	}
	probe := strings.ToLower(at.Name + " " + at.Code)
	for _, marker := range serviceActivityMarkers {
		if strings.Contains(probe, marker) {
			return true
		}
	}
	return false
}

// FilterCatalog returns the services selectable in one category, applying the
// special fiscal filter when it holds. All other category/activity combinations
// pass through unrestricted.
func FilterCatalog(services []models.Service, category string, at *models.ActivityType) []models.Service {
	restricted := IsSpecialFiscalFilter(at, category)
	out := make([]models.Service, 0, len(services))
	for _, s := range services {
		if s.Category != category {
			continue
		}
		if restricted && s.Code != models.FiscalDocServiceCode {
			continue
		}
		out = append(out, s)
	}
	return out
}
