package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var uuidRe = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
		"CHECKIN_LLM_PROVIDER", "CHECKIN_OTEL_ENDPOINT",
	} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	cfg := filepath.Join(dir, "checkin.yaml")
	if err := os.WriteFile(cfg, []byte("llm:\n  provider: mock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return &cli{t: t, base: []string{"--config", cfg, "--driver", "sqlite", "--db", filepath.Join(dir, "checkin.db")}}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, c.base...))
	err := rootCmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("checkin %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestCLI_LockAndUnlock(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("child", "add", "Ada", "--guardian", "g-1", "--age", "9-12", "--focus", "math")
	childID := uuidRe.FindString(out)
	if childID == "" {
		t.Fatalf("child add printed no ID:\n%s", out)
	}

	out = c.mustRun("child", "list", "--guardian", "g-1")
	if !strings.Contains(out, childID) {
		t.Errorf("child list missing %s:\n%s", childID, out)
	}

	out = c.mustRun("session", "start", childID)
	sessionID := uuidRe.FindString(out)
	if sessionID == "" {
		t.Fatalf("session start printed no ID:\n%s", out)
	}

	if _, err := c.run("session", "start", childID); err == nil {
		t.Error("second session start succeeded, want conflict")
	}

	for i := 0; i < 3; i++ {
		out = c.mustRun("session", "answer", sessionID, "not an option")
	}
	if !strings.Contains(out, "Device locked") {
		t.Errorf("third wrong answer did not lock:\n%s", out)
	}

	out = c.mustRun("session", "active", childID)
	if !strings.Contains(out, "full_stop") {
		t.Errorf("active session not full_stop:\n%s", out)
	}

	if _, err := c.run("session", "unlock", sessionID, "--guardian", "someone-else"); err == nil {
		t.Error("unlock by another guardian succeeded")
	}
	out = c.mustRun("session", "unlock", sessionID, "--guardian", "g-1")
	if !strings.Contains(out, "parent_unlocked") {
		t.Errorf("unlock output missing status:\n%s", out)
	}

	out = c.mustRun("notifications", "g-1")
	if !strings.Contains(out, "Device Locked") || !strings.Contains(out, "Check-in Complete") {
		t.Errorf("notifications missing alerts:\n%s", out)
	}

	out = c.mustRun("stats", "progress", childID, "--range", "7d")
	if !strings.Contains(out, "1 locked out") {
		t.Errorf("progress missing lockout:\n%s", out)
	}
}

func TestCLI_RemediationFlow(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("child", "add", "Bo", "--guardian", "g-2", "--age", "6-8")
	childID := uuidRe.FindString(out)
	out = c.mustRun("session", "start", childID)
	sessionID := uuidRe.FindString(out)

	for i := 0; i < 3; i++ {
		c.mustRun("session", "answer", sessionID, "not an option")
	}

	if _, err := c.run("session", "answer", sessionID, "a"); err == nil {
		t.Error("regular answer accepted on a locked session")
	}
	c.mustRun("session", "watched", sessionID)

	out = c.mustRun("session", "remediate", sessionID, "not an option")
	if !strings.Contains(out, "Watch the lesson again") {
		t.Errorf("wrong remediation answer did not require rewatch:\n%s", out)
	}

	out = c.mustRun("session", "show", sessionID)
	if !strings.Contains(out, "Remedial:") {
		t.Errorf("show did not include the lesson:\n%s", out)
	}
}

func TestCLI_InvalidInput(t *testing.T) {
	c := newCLI(t)

	if _, err := c.run("child", "add", "Cy", "--guardian", "g-3", "--age", "4-5"); err == nil {
		t.Error("child add accepted unknown age group")
	}
	if _, err := c.run("stats", "progress", "child", "--range", "14d"); err == nil {
		t.Error("stats progress accepted 14d")
	}
	if _, err := c.run("session", "show", "missing"); err == nil {
		t.Error("show of unknown session succeeded")
	}
}

func TestResolveVersion(t *testing.T) {
	old := version
	t.Cleanup(func() { version = old })

	version = "v1.2.3"
	if got := resolveVersion(); got != "v1.2.3" {
		t.Errorf("resolveVersion() = %q, want v1.2.3", got)
	}
}
