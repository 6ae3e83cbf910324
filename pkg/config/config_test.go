package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinValidators != 4 {
		t.Fatalf("expected default MinValidators 4, got %d", cfg.MinValidators)
	}
	if cfg.MaxValidators != 100 {
		t.Fatalf("expected default MaxValidators 100, got %d", cfg.MaxValidators)
	}
	if cfg.MinStake != 1000 {
		t.Fatalf("expected default MinStake 1000, got %d", cfg.MinStake)
	}
	if cfg.BlockTime != 6 {
		t.Fatalf("expected default BlockTime 6, got %d", cfg.BlockTime)
	}
	if cfg.EpochLength != 7200 {
		t.Fatalf("expected default EpochLength 7200, got %d", cfg.EpochLength)
	}
	if cfg.MaxBlockSize != 5*1024*1024 {
		t.Fatalf("expected default MaxBlockSize 5MiB, got %d", cfg.MaxBlockSize)
	}
	if cfg.SelectionThreshold != 0.67 {
		t.Fatalf("expected default SelectionThreshold 0.67, got %f", cfg.SelectionThreshold)
	}
	if cfg.VoteThreshold != 0.67 {
		t.Fatalf("expected default VoteThreshold 0.67, got %f", cfg.VoteThreshold)
	}
	if cfg.SecurityLevel != 128 {
		t.Fatalf("expected default SecurityLevel 128, got %d", cfg.SecurityLevel)
	}
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Setenv("ZKIPS_MIN_VALIDATORS", "7")
	os.Setenv("ZKIPS_BLOCK_TIME", "3")
	defer os.Unsetenv("ZKIPS_MIN_VALIDATORS")
	defer os.Unsetenv("ZKIPS_BLOCK_TIME")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MinValidators != 7 {
		t.Fatalf("expected overridden MinValidators 7, got %d", cfg.MinValidators)
	}
	if cfg.BlockTime != 3 {
		t.Fatalf("expected overridden BlockTime 3, got %d", cfg.BlockTime)
	}
}

func TestValidateRejectsInvertedValidatorBounds(t *testing.T) {
	cfg, _ := Load()
	cfg.MaxValidators = 1
	cfg.MinValidators = 4
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of MaxValidators < MinValidators")
	}
}

func TestValidateRejectsThresholdOutOfRange(t *testing.T) {
	cfg, _ := Load()
	cfg.SelectionThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected rejection of a selection threshold above 1")
	}
}

func TestValidateForDevelopmentIsLessStrict(t *testing.T) {
	cfg, _ := Load()
	cfg.SecurityLevel = 0
	cfg.SelectionThreshold = 0
	if err := cfg.ValidateForDevelopment(); err != nil {
		t.Fatalf("expected relaxed development validation to pass, got %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected strict validation to still reject the same config")
	}
}
