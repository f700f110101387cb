// Package config loads the scoring and matching policy for the pipeline.
// The loaded Config is immutable and passed explicitly into the resolver
// and the scoring engine; there is no ambient policy state.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full policy configuration.
type Config struct {
	Scoring       ScoringConfig     `yaml:"scoring"`
	ContractRange RangeConfig       `yaml:"contract_range"`
	PrimaryNAICS  []string          `yaml:"primary_naics"`
	SetAsides     []string          `yaml:"set_asides"`
	OrgSynonyms   map[string]string `yaml:"org_synonyms"`
	RoleKeywords  RoleKeywordConfig `yaml:"role_keywords"`
}

// ScoringConfig holds the additive scoring weights.
type ScoringConfig struct {
	Base          float64 `yaml:"base"`
	DecisionMaker float64 `yaml:"decision_maker"`
	TechnicalLead float64 `yaml:"technical_lead"`
	Executive     float64 `yaml:"executive"`
	SetAside      float64 `yaml:"set_aside"`
	FullAndOpen   float64 `yaml:"full_and_open"`
	NAICSPrimary  float64 `yaml:"naics_primary"`
}

// RangeConfig is the preferred contract-size range in dollars.
type RangeConfig struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// RoleKeywordConfig maps title keywords to role classifications.
// Matching is case-insensitive substring; the tables are configuration,
// not code.
type RoleKeywordConfig struct {
	DecisionMaker []string `yaml:"decision_maker"`
	TechnicalLead []string `yaml:"technical_lead"`
	Executive     []string `yaml:"executive"`
}

// Default returns the built-in policy. Weights follow the standard
// capture-planning model: 35 base (industry-average full-and-open win
// rate), relationship signal up to 25, contract fit up to 10, set-aside
// 10, NAICS 5.
func Default() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Base:          35,
			DecisionMaker: 25,
			TechnicalLead: 10,
			Executive:     5,
			SetAside:      10,
			FullAndOpen:   3,
			NAICSPrimary:  5,
		},
		ContractRange: RangeConfig{
			Low:  250_000,
			High: 5_000_000,
		},
		PrimaryNAICS: []string{"541511", "541512", "541519"},
		SetAsides: []string{
			"small business",
			"8(a)",
			"hubzone",
			"wosb",
			"edwosb",
			"sdvosb",
			"vosb",
			"sdb",
		},
		OrgSynonyms: map[string]string{
			"dod":   "department of defense",
			"va":    "department of veterans affairs",
			"gsa":   "general services administration",
			"dhs":   "department of homeland security",
			"hhs":   "department of health and human services",
			"doe":   "department of energy",
			"usda":  "department of agriculture",
			"doj":   "department of justice",
			"dot":   "department of transportation",
			"usaf":  "department of the air force",
			"navy":  "department of the navy",
			"usace": "army corps of engineers",
		},
		RoleKeywords: RoleKeywordConfig{
			DecisionMaker: []string{
				"contracting officer",
				"procurement",
				"director",
				"chief",
				"head of",
			},
			TechnicalLead: []string{
				"program manager",
				"project manager",
				"technical lead",
				"engineer",
				"architect",
				"scientist",
			},
			Executive: []string{
				"president",
				"ceo",
				"cio",
				"cto",
				"secretary",
				"administrator",
				"commissioner",
			},
		},
	}
}

// Load reads the policy file at path and merges it over the defaults.
// An empty path or a missing file yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}
	cfg.merge(&file)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(other *Config) {
	if other.Scoring != (ScoringConfig{}) {
		c.Scoring = other.Scoring
	}
	if other.ContractRange != (RangeConfig{}) {
		c.ContractRange = other.ContractRange
	}
	if len(other.PrimaryNAICS) > 0 {
		c.PrimaryNAICS = other.PrimaryNAICS
	}
	if len(other.SetAsides) > 0 {
		c.SetAsides = other.SetAsides
	}
	if len(other.OrgSynonyms) > 0 {
		c.OrgSynonyms = other.OrgSynonyms
	}
	if len(other.RoleKeywords.DecisionMaker) > 0 {
		c.RoleKeywords.DecisionMaker = other.RoleKeywords.DecisionMaker
	}
	if len(other.RoleKeywords.TechnicalLead) > 0 {
		c.RoleKeywords.TechnicalLead = other.RoleKeywords.TechnicalLead
	}
	if len(other.RoleKeywords.Executive) > 0 {
		c.RoleKeywords.Executive = other.RoleKeywords.Executive
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Scoring.Base < 0 || c.Scoring.Base > 100 {
		return fmt.Errorf("scoring.base must be in [0,100], got %v", c.Scoring.Base)
	}
	if c.ContractRange.Low < 0 {
		return fmt.Errorf("contract_range.low must be non-negative, got %v", c.ContractRange.Low)
	}
	if c.ContractRange.High <= c.ContractRange.Low {
		return fmt.Errorf("contract_range.high must exceed contract_range.low")
	}
	return nil
}
