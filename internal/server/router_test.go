package server

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appdb "github.com/contaflow/proposal-app/internal/db"
	"github.com/contaflow/proposal-app/internal/draft"
	"github.com/contaflow/proposal-app/internal/models"
	"github.com/contaflow/proposal-app/internal/wizard"
)

func setupServer(t *testing.T) (http.Handler, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := appdb.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := appdb.SeedCatalog(db); err != nil {
		t.Fatalf("seed: %v", err)
	}
	manager := wizard.NewManager(draft.NewGormStore(db), nil, draft.Config{}, time.Hour, draft.DefaultTTL, nil)
	t.Cleanup(manager.Close)
	return New(db, manager, nil), db
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

func mustFind[T any](t *testing.T, db *gorm.DB, query string, args ...any) T {
	t.Helper()
	var out T
	if err := db.First(&out, append([]any{query}, args...)...).Error; err != nil {
		t.Fatalf("lookup %s: %v", query, err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	h, _ := setupServer(t)
	if rr := do(t, h, http.MethodGet, "/health", nil); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/healthz", nil); rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
}

func TestMethodGuard(t *testing.T) {
	h, _ := setupServer(t)
	rr := do(t, h, http.MethodGet, "/wizard/advance", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestCreateSessionStartsAtClientStep(t *testing.T) {
	h, _ := setupServer(t)
	rr := do(t, h, http.MethodPost, "/wizard/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		ID   string `json:"id"`
		Step string `json:"step"`
	}
	decode(t, rr, &resp)
	if resp.ID == "" || resp.Step != "client" {
		t.Fatalf("unexpected session %+v", resp)
	}
}

func TestAdvanceBlockedWithoutClient(t *testing.T) {
	h, _ := setupServer(t)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, do(t, h, http.MethodPost, "/wizard/sessions", nil), &created)

	rr := do(t, h, http.MethodPost, "/wizard/advance?id="+created.ID, nil)
	var resp struct {
		OK     bool   `json:"ok"`
		Step   string `json:"step"`
		Reason string `json:"reason"`
	}
	decode(t, rr, &resp)
	if resp.OK || resp.Step != "client" {
		t.Fatalf("advance must be blocked: %+v", resp)
	}
	if resp.Reason != "client" {
		t.Fatalf("unexpected reason %q", resp.Reason)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	h, db := setupServer(t)

	var types struct {
		Items []models.ActivityType `json:"items"`
	}
	decode(t, do(t, h, http.MethodGet, "/catalog/activity-types", nil), &types)
	if len(types.Items) != 3 {
		t.Fatalf("expected 3 activity types, got %d", len(types.Items))
	}

	var regimes struct {
		Items []models.TaxRegime `json:"items"`
	}
	decode(t, do(t, h, http.MethodGet, "/catalog/tax-regimes?corporate=1", nil), &regimes)
	if len(regimes.Items) != 2 {
		t.Fatalf("expected 2 corporate regimes, got %d", len(regimes.Items))
	}

	sn := mustFind[models.TaxRegime](t, db, "code = ?", "SN")
	var brackets struct {
		Items []models.RevenueBracket `json:"items"`
	}
	decode(t, do(t, h, http.MethodGet, fmt.Sprintf("/catalog/revenue-brackets?regime_id=%d", sn.ID), nil), &brackets)
	if len(brackets.Items) != 3 {
		t.Fatalf("expected 3 brackets, got %d", len(brackets.Items))
	}
}

// Walks a session through every step and finalizes an above-threshold discount,
// exercising the confirmation gate and the post-finalize discard.
func TestWizardFullWalkthrough(t *testing.T) {
	h, db := setupServer(t)

	client := models.Client{Name: "Oficina Boa Vista", TaxID: "98765432000155", Email: "oficina@boavista.com", OpensNewCompany: true}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	serv := mustFind[models.ActivityType](t, db, "code = ?", "SERV")
	mei := mustFind[models.TaxRegime](t, db, "code = ?", "MEI")
	contMensal := mustFind[models.Service](t, db, "code = ?", "CONT-MENSAL")

	var created struct {
		ID string `json:"id"`
	}
	decode(t, do(t, h, http.MethodPost, "/wizard/sessions", nil), &created)
	id := created.ID

	advance := func() (bool, string, string) {
		var resp struct {
			OK     bool   `json:"ok"`
			Step   string `json:"step"`
			Reason string `json:"reason"`
		}
		decode(t, do(t, h, http.MethodPost, "/wizard/advance?id="+id, nil), &resp)
		return resp.OK, resp.Step, resp.Reason
	}

	if rr := do(t, h, http.MethodPost, "/wizard/client?id="+id, map[string]any{"client_id": client.ID}); rr.Code != http.StatusOK {
		t.Fatalf("set client: %d %s", rr.Code, rr.Body.String())
	}
	if ok, step, reason := advance(); !ok || step != "tax_config" {
		t.Fatalf("advance to tax_config: ok=%v step=%s reason=%s", ok, step, reason)
	}

	if rr := do(t, h, http.MethodPost, "/wizard/activity-type?id="+id, map[string]any{"activity_type_id": serv.ID}); rr.Code != http.StatusOK {
		t.Fatalf("set activity: %d %s", rr.Code, rr.Body.String())
	}
	if rr := do(t, h, http.MethodPost, "/wizard/tax-regime?id="+id, map[string]any{"tax_regime_id": mei.ID}); rr.Code != http.StatusOK {
		t.Fatalf("set regime: %d %s", rr.Code, rr.Body.String())
	}
	// MEI exposes no brackets, so tax_config is complete without one.
	if ok, step, reason := advance(); !ok || step != "services" {
		t.Fatalf("advance to services: ok=%v step=%s reason=%s", ok, step, reason)
	}

	if rr := do(t, h, http.MethodPost, "/wizard/service?id="+id, map[string]any{"service_id": contMensal.ID, "quantity": 1}); rr.Code != http.StatusOK {
		t.Fatalf("upsert service: %d %s", rr.Code, rr.Body.String())
	}
	if ok, step, reason := advance(); !ok || step != "review" {
		t.Fatalf("advance to review: ok=%v step=%s reason=%s", ok, step, reason)
	}

	if rr := do(t, h, http.MethodPost, "/wizard/discount?id="+id, map[string]any{"percent": "25"}); rr.Code != http.StatusOK {
		t.Fatalf("set discount: %d %s", rr.Code, rr.Body.String())
	}
	if ok, step, reason := advance(); ok || reason != "discount_requires_confirmation" {
		t.Fatalf("expected confirmation gate: ok=%v step=%s reason=%s", ok, step, reason)
	}

	var confirmed struct {
		Confirm string `json:"confirm"`
	}
	decode(t, do(t, h, http.MethodPost, "/wizard/discount/confirm?id="+id, map[string]any{"accept": true}), &confirmed)
	if confirmed.Confirm != "confirmed" {
		t.Fatalf("confirm state %q", confirmed.Confirm)
	}
	if ok, step, _ := advance(); !ok || step != "finalize" {
		t.Fatalf("advance to finalize failed: step=%s", step)
	}

	rr := do(t, h, http.MethodPost, "/wizard/finalize?id="+id, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("finalize: %d %s", rr.Code, rr.Body.String())
	}
	var fin struct {
		ID     uint   `json:"id"`
		Number string `json:"number"`
		Status string `json:"status"`
	}
	decode(t, rr, &fin)
	if fin.Number == "" || fin.Status != models.ProposalStatusAwaitingApproval {
		t.Fatalf("unexpected finalize response %+v", fin)
	}

	var p models.Proposal
	if err := db.First(&p, fin.ID).Error; err != nil {
		t.Fatalf("proposal not persisted: %v", err)
	}
	if !p.AwaitingApproval {
		t.Fatalf("25%% discount must be flagged for approval")
	}
	// 150 services + 300 MEI opening fee, minus 25%.
	if p.FinalTotal.StringFixed(2) != "337.50" {
		t.Fatalf("unexpected final total %s", p.FinalTotal)
	}

	// Finalizing discards the session along with its drafts.
	if rr := do(t, h, http.MethodGet, "/wizard/sessions?id="+id, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected discarded session, got %d", rr.Code)
	}
}
