package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "SQLITE")
	t.Setenv("FRONTEND_URL", "https://learn.example.com/")
	t.Setenv("STRIPE_WEBHOOK_TOLERANCE_SECONDS", "60")
	t.Setenv("REDIS_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_CHECKOUT_BURST", "not-a-number")

	cfg := Load()
	if cfg.DBType != "sqlite" {
		t.Fatalf("expected sqlite db type, got %q", cfg.DBType)
	}
	if cfg.FrontendURL != "https://learn.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.FrontendURL)
	}
	if cfg.Stripe.WebhookTolerance != time.Minute {
		t.Fatalf("expected 60s tolerance, got %s", cfg.Stripe.WebhookTolerance)
	}
	if !cfg.Redis.Enabled {
		t.Fatalf("expected redis enabled")
	}
	if cfg.RateLimit.CheckoutBurst != 5 {
		t.Fatalf("expected default burst on invalid value, got %d", cfg.RateLimit.CheckoutBurst)
	}
}

func TestPlanCatalogHolderLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plans.yml")
	content := []byte(`plans:
  - id: pro-monthly
    name: Pro Monthly
    priceId: price_month
    interval: month
  - id: pro-yearly
    name: Pro Yearly
    priceId: price_year
    interval: year
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write plans: %v", err)
	}

	holder, err := NewPlanCatalogHolder(Config{PlansConfigPath: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	plan, ok := holder.Get().Lookup("pro-yearly")
	if !ok {
		t.Fatalf("expected pro-yearly plan")
	}
	if plan.PriceID != "price_year" || plan.Interval != PlanIntervalYear {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestPlanCatalogHolderMissingFileIsEmpty(t *testing.T) {
	holder, err := NewPlanCatalogHolder(Config{PlansConfigPath: filepath.Join(t.TempDir(), "absent.yml")}, zap.NewNop())
	if err != nil {
		t.Fatalf("expected missing file to be tolerated, got %v", err)
	}
	if len(holder.Get().Plans) != 0 {
		t.Fatalf("expected empty catalog")
	}
}

func TestValidatePlanCatalogRejectsBadInterval(t *testing.T) {
	err := validatePlanCatalog(PlanCatalog{Plans: []Plan{{ID: "p", PriceID: "price", Interval: "week"}}})
	if err == nil {
		t.Fatalf("expected interval validation error")
	}
}
