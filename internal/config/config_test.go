package config

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, kv map[string]string, fn func()) {
	t.Helper()
	for k, v := range kv {
		old, had := os.LookupEnv(k)
		os.Setenv(k, v)
		defer func(k, old string, had bool) {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		}(k, old, had)
	}
	fn()
}

func TestLoad_Defaults(t *testing.T) {
	withEnv(t, map[string]string{
		"PARTITION_COUNT":       "",
		"PREFETCH_COUNT":        "",
		"MAX_RETRIES":           "",
		"PROCESSING_TIMEOUT_MS": "",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.PartitionCount != 3 {
			t.Errorf("expected default PartitionCount=3, got %d", cfg.PartitionCount)
		}
		if cfg.MaxRetries != 3 {
			t.Errorf("expected default MaxRetries=3, got %d", cfg.MaxRetries)
		}
		if len(cfg.RetryDelays) != 3 || cfg.RetryDelays[0] != 5000 || cfg.RetryDelays[2] != 30000 {
			t.Errorf("expected default retry delays [5000 15000 30000], got %v", cfg.RetryDelays)
		}
	})
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"PARTITION_COUNT": "8",
		"MAX_RETRIES":     "5",
		"RETRY_DELAY_1":   "1000",
	}, func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.PartitionCount != 8 {
			t.Errorf("expected PartitionCount=8, got %d", cfg.PartitionCount)
		}
		if cfg.MaxRetries != 5 {
			t.Errorf("expected MaxRetries=5, got %d", cfg.MaxRetries)
		}
		if cfg.RetryDelays[0] != 1000 {
			t.Errorf("expected RetryDelays[0]=1000, got %d", cfg.RetryDelays[0])
		}
	})
}

func TestLoad_RejectsInvalidPartitionCount(t *testing.T) {
	withEnv(t, map[string]string{"PARTITION_COUNT": "0"}, func() {
		if _, err := Load(); err == nil {
			t.Fatal("expected error for PARTITION_COUNT=0")
		}
	})
}

func TestLoad_RejectsNegativeMaxRetries(t *testing.T) {
	withEnv(t, map[string]string{"MAX_RETRIES": "-1"}, func() {
		if _, err := Load(); err == nil {
			t.Fatal("expected error for negative MAX_RETRIES")
		}
	})
}
