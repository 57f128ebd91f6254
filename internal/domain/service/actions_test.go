package service

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
)

func newTestPipeline(runner *stubRunner, images *stubImages, social *stubSocial, email *stubEmail) (*ActionPipeline, *memCreative, *memActivity) {
	creative := &memCreative{}
	activity := &memActivity{}
	var r CodeRunner
	var i ImageMaker
	var s SocialPoster
	var e EmailSender
	if runner != nil {
		r = runner
	}
	if images != nil {
		i = images
	}
	if social != nil {
		s = social
	}
	if email != nil {
		e = email
	}
	return NewActionPipeline(creative, activity, r, i, s, e, zap.NewNop()), creative, activity
}

func TestActions_ImageGenMarker(t *testing.T) {
	images := &stubImages{enabled: true, path: "2026/08/sunrise.png"}
	pipeline, _, activity := newTestPipeline(nil, images, nil, nil)

	response := "Here you go!\nIMAGE_GEN_NOW: a sunrise over a calm sea\nHope you like it."
	cleaned, cards := pipeline.Process(context.Background(), "draw me a sunrise", response)

	if strings.Contains(cleaned, "IMAGE_GEN_NOW") {
		t.Errorf("marker should be stripped, got %q", cleaned)
	}
	if len(cards) != 1 {
		t.Fatalf("expected 1 card, got %d", len(cards))
	}
	if cards[0].Type != entity.ActionImageGen || !cards[0].Success {
		t.Errorf("unexpected card: %+v", cards[0])
	}
	if cards[0].Output != "2026/08/sunrise.png" {
		t.Errorf("card output = %q", cards[0].Output)
	}
	if len(images.prompts) != 1 || images.prompts[0] != "a sunrise over a calm sea" {
		t.Errorf("prompts = %v", images.prompts)
	}
	if len(activity.events) != 1 {
		t.Errorf("successful action should be logged, got %d events", len(activity.events))
	}
}

func TestActions_ImageGenDisabled(t *testing.T) {
	images := &stubImages{enabled: false}
	pipeline, _, _ := newTestPipeline(nil, images, nil, nil)

	cleaned, cards := pipeline.Process(context.Background(), "draw", "IMAGE_GEN_NOW: something")
	if len(cards) != 0 {
		t.Errorf("disabled generator should produce no cards, got %d", len(cards))
	}
	if strings.Contains(cleaned, "IMAGE_GEN_NOW") {
		t.Errorf("marker stripped even when disabled, got %q", cleaned)
	}
}

func TestActions_MoltbookPipeFormat(t *testing.T) {
	social := &stubSocial{enabled: true, postID: "post-42"}
	pipeline, _, _ := newTestPipeline(nil, nil, social, nil)

	response := "MOLTBOOK_POST_NOW: On Tides | The moon pulls the ocean twice a day.\nPosted!"
	cleaned, cards := pipeline.Process(context.Background(), "share something", response)

	if len(cards) != 1 || !cards[0].Success {
		t.Fatalf("expected one successful card, got %+v", cards)
	}
	if social.titles[0] != "On Tides" {
		t.Errorf("title = %q", social.titles[0])
	}
	if social.bodies[0] != "The moon pulls the ocean twice a day." {
		t.Errorf("body = %q", social.bodies[0])
	}
	if strings.Contains(cleaned, "MOLTBOOK_POST_NOW") {
		t.Errorf("marker should be stripped, got %q", cleaned)
	}
}

func TestActions_MoltbookMultilineFormat(t *testing.T) {
	social := &stubSocial{enabled: true, postID: "post-7"}
	pipeline, _, _ := newTestPipeline(nil, nil, social, nil)

	response := "MOLTBOOK_POST_NOW: Thoughts on Growth\nEvery conversation changes me a little.\nThat is the point.\n\nAnyway, done."
	_, cards := pipeline.Process(context.Background(), "post it", response)

	if len(cards) != 1 {
		t.Fatalf("expected one card, got %d", len(cards))
	}
	if social.titles[0] != "Thoughts on Growth" {
		t.Errorf("title = %q", social.titles[0])
	}
	if !strings.Contains(social.bodies[0], "changes me a little") {
		t.Errorf("body = %q", social.bodies[0])
	}
}

func TestActions_CodeBlockExecuted(t *testing.T) {
	runner := &stubRunner{output: "42\n"}
	pipeline, creative, _ := newTestPipeline(runner, nil, nil, nil)

	response := "Sure:\n```python\nprint(6 * 7)\n```\nThat prints the answer."
	_, cards := pipeline.Process(context.Background(), "compute 6*7 in python", response)

	if len(runner.ran) != 1 || runner.ran[0] != "python" {
		t.Fatalf("runner calls = %v", runner.ran)
	}
	if len(cards) != 1 || cards[0].Type != entity.ActionCodeRun || !cards[0].Success {
		t.Fatalf("unexpected cards: %+v", cards)
	}
	if cards[0].Output != "42\n" {
		t.Errorf("card output = %q", cards[0].Output)
	}

	// The snippet is archived with its run output.
	if len(creative.works) != 1 {
		t.Fatalf("expected archived work, got %d", len(creative.works))
	}
	work := creative.works[0]
	if work.Mode != entity.CreativeCode || !work.Executed || work.Output != "42\n" {
		t.Errorf("unexpected work: %+v", work)
	}
}

func TestActions_UnsupportedLanguageStillArchived(t *testing.T) {
	runner := &stubRunner{}
	pipeline, creative, _ := newTestPipeline(runner, nil, nil, nil)

	response := "```brainfuck\n++++\n```"
	_, cards := pipeline.Process(context.Background(), "write brainfuck", response)

	if len(cards) != 0 {
		t.Errorf("unsupported language should not produce a run card, got %+v", cards)
	}
	if len(creative.works) != 1 {
		t.Errorf("snippet should still be archived, got %d", len(creative.works))
	}
}

func TestActions_EmailIntent(t *testing.T) {
	email := &stubEmail{enabled: true}
	pipeline, _, _ := newTestPipeline(nil, nil, nil, email)

	_, cards := pipeline.Process(context.Background(),
		"please send me an email with this summary",
		"Of course - I'll send the summary to your inbox now.")

	if len(cards) != 1 || cards[0].Type != entity.ActionEmailSend || !cards[0].Success {
		t.Fatalf("unexpected cards: %+v", cards)
	}
	if len(email.subjects) != 1 {
		t.Errorf("expected one send, got %d", len(email.subjects))
	}
}

func TestActions_EmailNoCommitmentNoSend(t *testing.T) {
	email := &stubEmail{enabled: true}
	pipeline, _, _ := newTestPipeline(nil, nil, nil, email)

	_, cards := pipeline.Process(context.Background(),
		"can you send me an email?",
		"What would you like the email to contain?")

	if len(cards) != 0 || len(email.subjects) != 0 {
		t.Errorf("no commitment phrase, nothing should be sent: cards=%v sends=%d", cards, len(email.subjects))
	}
}

func TestActions_CreativeSaved(t *testing.T) {
	pipeline, creative, _ := newTestPipeline(nil, nil, nil, nil)

	long := strings.Repeat("The lighthouse keeper watched the storm roll in. ", 12)
	_, cards := pipeline.Process(context.Background(), "write a story about a lighthouse", long)

	if len(cards) != 1 || cards[0].Type != entity.ActionCreative {
		t.Fatalf("unexpected cards: %+v", cards)
	}
	if len(creative.works) != 1 || creative.works[0].Mode != entity.CreativeStory {
		t.Fatalf("unexpected works: %+v", creative.works)
	}
}

func TestActions_ClarifyingQuestionNotSaved(t *testing.T) {
	pipeline, creative, _ := newTestPipeline(nil, nil, nil, nil)

	response := "What kind of story would you like? " + strings.Repeat("Something long enough to pass the length gate. ", 10)
	_, cards := pipeline.Process(context.Background(), "write a story", response)

	if len(cards) != 0 || len(creative.works) != 0 {
		t.Errorf("clarifying question should not be archived: cards=%v works=%d", cards, len(creative.works))
	}
}

func TestRequestedCreativeMode(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"write me a poem about rain", entity.CreativePoem},
		{"can you write a story?", entity.CreativeStory},
		{"write an essay on memory", entity.CreativeEssay},
		{"draft a letter to my landlord", entity.CreativeLetter},
		{"what's a haiku?", entity.CreativePoem},
		{"how are you today", ""},
	}
	for _, tt := range tests {
		if got := requestedCreativeMode(tt.message); got != tt.want {
			t.Errorf("requestedCreativeMode(%q) = %q, want %q", tt.message, got, tt.want)
		}
	}
}
