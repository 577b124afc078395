package config

import "testing"

func TestGovernanceAutonomousAliasMapsToFailsafe(t *testing.T) {
	c := &Config{}
	c.Governance.Mode = GovernanceAutonomous
	normalize(c)
	if c.Governance.Mode != GovernanceFailsafe {
		t.Fatalf("expected autonomous to normalize to failsafe, got %s", c.Governance.Mode)
	}

	c.Governance.Mode = GovernanceSupervised
	normalize(c)
	if c.Governance.Mode != GovernanceSupervised {
		t.Fatalf("expected supervised to pass through unchanged, got %s", c.Governance.Mode)
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("HIVE_TEST_KEY", "overlay")
	if got := envOrDefault("HIVE_TEST_KEY", "fallback"); got != "overlay" {
		t.Fatalf("expected set variable to win, got %q", got)
	}
	if got := envOrDefault("HIVE_TEST_KEY_UNSET", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for unset variable, got %q", got)
	}
}
