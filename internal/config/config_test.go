package config

import (
	"testing"
)

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":  "postgres://localhost/shakeout",
		"REDIS_URL":     "redis://localhost:6379/0",
		"SITE_ROOT_URL": "https://learn.example.org",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.HTTPAddr() != ":8080" {
		t.Fatalf("unexpected port defaults %q %q", cfg.Port, cfg.HTTPAddr())
	}
	if cfg.WebhookBaseURL != cfg.SiteRootURL {
		t.Fatal("webhook base should fall back to site root")
	}
	want := []string{"EGP", "USD", "EUR", "GBP"}
	if len(cfg.Gateway.SupportedCurrencies) != len(want) {
		t.Fatalf("currencies = %v", cfg.Gateway.SupportedCurrencies)
	}
	for i, c := range want {
		if cfg.Gateway.SupportedCurrencies[i] != c {
			t.Fatalf("currencies = %v", cfg.Gateway.SupportedCurrencies)
		}
	}
	if cfg.Gateway.Configured() {
		t.Fatal("gateway must not report configured without keys")
	}
	if cfg.Gateway.AllowUnsignedWebhooks {
		t.Fatal("unsigned webhooks must be rejected by default")
	}
	if cfg.Gateway.APIBaseURL() != ProductionBaseURL {
		t.Fatalf("base url = %q", cfg.Gateway.APIBaseURL())
	}
}

func TestLoadRequiredVars(t *testing.T) {
	for _, missing := range []string{"DATABASE_URL", "REDIS_URL", "SITE_ROOT_URL"} {
		env := baseEnv()
		env[missing] = ""
		if _, err := LoadForTests(env); err == nil {
			t.Errorf("expected error when %s is missing", missing)
		}
	}
}

func TestGatewaySettings(t *testing.T) {
	env := baseEnv()
	env["SHAKEOUT_API_KEY"] = "k"
	env["SHAKEOUT_SECRET_KEY"] = "s"
	env["SHAKEOUT_SANDBOX"] = "true"
	env["SHAKEOUT_SURCHARGE_PERCENT"] = "2.5"
	env["SHAKEOUT_CURRENCIES"] = "egp, usd"

	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Gateway.Configured() {
		t.Fatal("gateway should be configured")
	}
	if cfg.Gateway.APIBaseURL() != SandboxBaseURL {
		t.Fatalf("base url = %q", cfg.Gateway.APIBaseURL())
	}
	if !cfg.Gateway.SupportsCurrency("EGP") || !cfg.Gateway.SupportsCurrency("usd") {
		t.Fatal("currency matching should be case-insensitive")
	}
	if cfg.Gateway.SupportsCurrency("EUR") {
		t.Fatal("EUR not in the configured list")
	}
	if cfg.Gateway.SurchargePercent.String() != "2.5" {
		t.Fatalf("surcharge = %s", cfg.Gateway.SurchargePercent)
	}
}

func TestExplicitBaseURLWins(t *testing.T) {
	env := baseEnv()
	env["SHAKEOUT_SANDBOX"] = "true"
	env["SHAKEOUT_BASE_URL"] = "https://stub.example.org/api/"
	cfg, err := LoadForTests(env)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.APIBaseURL() != "https://stub.example.org/api" {
		t.Fatalf("base url = %q", cfg.Gateway.APIBaseURL())
	}
}
