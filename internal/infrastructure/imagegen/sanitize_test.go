package imagegen

import (
	"strings"
	"testing"
)

func TestSanitizePrompt_CleanPassesThrough(t *testing.T) {
	in := "a lighthouse on a stormy cliff at dusk, oil painting"
	got, changed := SanitizePrompt(in)
	if changed {
		t.Error("clean prompt should not be flagged as changed")
	}
	if got != in {
		t.Errorf("got %q", got)
	}
}

func TestSanitizePrompt_StripsInstructionFragments(t *testing.T) {
	got, changed := SanitizePrompt("IMAGE_GEN_NOW: vivid description for a misty mountain lake with pine trees at dawn")
	if !changed {
		t.Error("should be flagged as changed")
	}
	if strings.Contains(got, "IMAGE_GEN_NOW") || strings.Contains(got, "vivid description") {
		t.Errorf("instruction fragments should be stripped, got %q", got)
	}
	if !strings.Contains(got, "misty mountain lake") {
		t.Errorf("visual content should survive, got %q", got)
	}
}

func TestSanitizePrompt_TooShortFallsBack(t *testing.T) {
	got, changed := SanitizePrompt("cat")
	if !changed || got != fallbackPrompt {
		t.Errorf("short prompt should fall back, got %q (changed=%v)", got, changed)
	}
}

func TestSanitizePrompt_MostlyDigitsFallsBack(t *testing.T) {
	got, _ := SanitizePrompt("1920 1080 4096 render car scene")
	if got != fallbackPrompt {
		t.Errorf("digit-heavy prompt should fall back, got %q", got)
	}
}

func TestSanitizePrompt_TruncatesLongPrompts(t *testing.T) {
	long := strings.Repeat("shimmering colorful nebula clouds drifting ", 20)
	got, changed := SanitizePrompt(long)
	if !changed {
		t.Error("truncation should flag the prompt as changed")
	}
	if n := len(strings.Fields(got)); n != maxPromptWords {
		t.Errorf("expected %d words, got %d", maxPromptWords, n)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"A Lighthouse, at Dusk!", 40, "a_lighthouse_at_dusk"},
		{"hello world", 5, "hello"},
		{"***", 10, ""},
	}
	for _, tt := range tests {
		if got := Slug(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Slug(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
