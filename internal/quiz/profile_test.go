package quiz

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadProfile_OverridesOnlyGivenKeys(t *testing.T) {
	path := writeProfile(t, "penalty: \"0.5\"\nshuffle_answers: false\nname_length: 20\n")

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Penalty != "0.5" {
		t.Errorf("expected penalty %q, got %q", "0.5", p.Penalty)
	}
	if p.ShuffleAnswers {
		t.Error("expected shuffle_answers to be overridden to false")
	}
	if p.NameLength != 20 {
		t.Errorf("expected name length 20, got %d", p.NameLength)
	}

	def := DefaultProfile()
	if p.DefaultGrade != def.DefaultGrade {
		t.Errorf("expected default grade to keep %q, got %q", def.DefaultGrade, p.DefaultGrade)
	}
	if p.CorrectFeedback != def.CorrectFeedback {
		t.Errorf("expected correct feedback to keep its default, got %q", p.CorrectFeedback)
	}
}

func TestLoadProfile_InvalidNameLength(t *testing.T) {
	path := writeProfile(t, "name_length: 0\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected an error for a zero name length")
	}
}

func TestLoadProfile_MalformedYAML(t *testing.T) {
	path := writeProfile(t, "penalty: [unterminated\n")
	if _, err := LoadProfile(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestLoadProfile_MissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestDefaultProfile_Valid(t *testing.T) {
	if err := DefaultProfile().Validate(); err != nil {
		t.Fatalf("expected default profile to be valid, got %v", err)
	}
}
