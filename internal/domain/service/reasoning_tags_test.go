package service

import (
	"strings"
	"testing"
)

func TestStripReasoningTags_NoTags(t *testing.T) {
	in := "Just a plain answer with no markup."
	if got := StripReasoningTags(in); got != in {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestStripReasoningTags_Basic(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"think pair", "<think>internal monologue</think>Hello!", "Hello!"},
		{"thinking pair", "<thinking>hmm</thinking>  Answer here", "Answer here"},
		{"thought pair", "before <thought>secret</thought> after", "before  after"},
		{"case insensitive", "<THINK>loud</THINK>quiet", "quiet"},
		{"spaced tag", "< think >x</ think >y", "y"},
		{"multiple blocks", "<think>a</think>one<think>b</think> two", "one two"},
		{"final tag unwrapped", "<final>The answer is 42.</final>", "The answer is 42."},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		if got := StripReasoningTags(tt.in); got != tt.want {
			t.Errorf("%s: StripReasoningTags(%q) = %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestStripReasoningTags_UnclosedStrict(t *testing.T) {
	// Strict mode drops everything after an unclosed <think>.
	got := StripReasoningTags("Visible part.<think>never closed, still thinking")
	if got != "Visible part." {
		t.Errorf("strict mode should truncate at unclosed tag, got %q", got)
	}
}

func TestStripReasoningTags_UnclosedPreserve(t *testing.T) {
	got := StripReasoningTags("Visible.<think>leaked thoughts", WithStripMode(StripPreserve))
	if !strings.Contains(got, "leaked thoughts") {
		t.Errorf("preserve mode should keep tail content, got %q", got)
	}
}

func TestStripReasoningTags_CodeBlockProtected(t *testing.T) {
	in := "Here is the snippet:\n```html\n<think>this is markup, not reasoning</think>\n```\ndone"
	got := StripReasoningTags(in)
	if !strings.Contains(got, "<think>this is markup, not reasoning</think>") {
		t.Errorf("tags inside fenced code must survive, got %q", got)
	}
}

func TestStripReasoningTags_InlineCodeProtected(t *testing.T) {
	in := "Use `<think>` as the marker. <think>real reasoning</think>Done."
	got := StripReasoningTags(in)
	if !strings.Contains(got, "`<think>`") {
		t.Errorf("inline code span should be preserved, got %q", got)
	}
	if strings.Contains(got, "real reasoning") {
		t.Errorf("actual reasoning should be stripped, got %q", got)
	}
}

func TestStripReasoningTags_TrimModes(t *testing.T) {
	in := "  <think>x</think>  body  "
	if got := StripReasoningTags(in); got != "body" {
		t.Errorf("TrimBoth: got %q", got)
	}
	if got := StripReasoningTags(in, WithTrimMode(TrimStart)); got != "body  " {
		t.Errorf("TrimStart: got %q", got)
	}
}

func TestFindFencedBlocks_Unclosed(t *testing.T) {
	text := "prose\n```go\ncode to the end"
	regions := findFencedBlocks(text, "```")
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0].end != len(text) {
		t.Errorf("unclosed fence should run to end of text, got %d", regions[0].end)
	}
}
