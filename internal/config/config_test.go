package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scoring.Base != 35 {
		t.Fatalf("base = %v, want default 35", cfg.Scoring.Base)
	}

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load with empty path failed: %v", err)
	}
	if cfg.Scoring.DecisionMaker != 25 {
		t.Fatalf("decision maker weight = %v, want default 25", cfg.Scoring.DecisionMaker)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
contract_range:
  low: 500000
  high: 10000000
primary_naics:
  - "541611"
org_synonyms:
  faa: federal aviation administration
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ContractRange.Low != 500_000 || cfg.ContractRange.High != 10_000_000 {
		t.Fatalf("contract range not overridden: %+v", cfg.ContractRange)
	}
	if len(cfg.PrimaryNAICS) != 1 || cfg.PrimaryNAICS[0] != "541611" {
		t.Fatalf("primary naics not overridden: %v", cfg.PrimaryNAICS)
	}
	if cfg.OrgSynonyms["faa"] != "federal aviation administration" {
		t.Fatalf("synonyms not overridden: %v", cfg.OrgSynonyms)
	}

	// Sections absent from the file keep their defaults.
	if cfg.Scoring.Base != 35 {
		t.Fatalf("scoring defaults lost: %+v", cfg.Scoring)
	}
	if len(cfg.RoleKeywords.DecisionMaker) == 0 {
		t.Fatal("role keyword defaults lost")
	}
}

func TestLoadRejectsInvalidRange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
contract_range:
  low: 1000000
  high: 1000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for inverted range")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("contract_range: ["), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
