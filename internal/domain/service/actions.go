package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"go.uber.org/zap"
)

const (
	maxCodeBlocksPerResponse = 3
	maxRunOutputBytes        = 2000
	minCreativeLength        = 400
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```(\\w+)\\n(.*?)```")
	imageGenRe  = regexp.MustCompile(`(?m)^\s*IMAGE_GEN_NOW:\s*(.+)$`)
	moltPostRe  = regexp.MustCompile(`(?m)^\s*MOLTBOOK_POST_NOW:\s*(.+)$`)
)

// Commitment phrases that confirm the assistant intends to send email.
var emailCommitPhrases = []string{
	"i'll send",
	"i've sent",
	"sending the email",
	"email sent",
}

// Openers that mean the response is a clarifying question, not content.
var clarifyingOpeners = []string{
	"what kind",
	"what sort",
	"what do you",
	"which ",
	"could you clarify",
	"can you clarify",
	"do you mean",
	"before i write",
	"just to confirm",
	"a few questions",
}

// Creative modes the user can request, keyed by prompt phrases.
var creativeModePhrases = []struct {
	mode    string
	phrases []string
}{
	{entity.CreativeStory, []string{"write a story", "tell me a story", "write me a story", "short story", "fiction", "narrative", "once upon"}},
	{entity.CreativePoem, []string{"write a poem", "write me a poem", "haiku", "sonnet", "write some poetry", "rhyme"}},
	{entity.CreativeEssay, []string{"write an essay", "write a blog", "write an article", "write an analysis", "write a report"}},
	{entity.CreativeLetter, []string{"write a letter", "compose a letter", "draft a letter"}},
}

// ActionPipeline inspects each assistant response for autonomous actions:
// runnable code, image generation, social posts, email sends, creative
// outputs. Failures are logged and surfaced on the card, never propagated.
type ActionPipeline struct {
	creative repository.CreativeRepository
	activity repository.ActivityRepository

	runner CodeRunner   // nil disables code execution
	images ImageMaker   // nil disables image generation
	social SocialPoster // nil disables social posting
	email  EmailSender  // nil disables email

	logger *zap.Logger
}

func NewActionPipeline(
	creative repository.CreativeRepository,
	activity repository.ActivityRepository,
	runner CodeRunner,
	images ImageMaker,
	social SocialPoster,
	email EmailSender,
	logger *zap.Logger,
) *ActionPipeline {
	return &ActionPipeline{
		creative: creative,
		activity: activity,
		runner:   runner,
		images:   images,
		social:   social,
		email:    email,
		logger:   logger.With(zap.String("engine", "actions")),
	}
}

// Process scans the response for action triggers. Returns the response
// with trigger markers stripped, plus one card per action attempted.
func (p *ActionPipeline) Process(ctx context.Context, userMsg, response string) (string, []entity.ActionCard) {
	var cards []entity.ActionCard

	response, cards = p.processImageGen(ctx, response, cards)
	response, cards = p.processSocialPost(ctx, response, cards)
	cards = p.processCodeBlocks(ctx, userMsg, response, cards)
	cards = p.processEmailIntent(ctx, userMsg, response, cards)
	cards = p.processCreative(ctx, userMsg, response, cards)

	return strings.TrimSpace(response), cards
}

func (p *ActionPipeline) processImageGen(ctx context.Context, response string, cards []entity.ActionCard) (string, []entity.ActionCard) {
	match := imageGenRe.FindStringSubmatch(response)
	if match == nil {
		return response, cards
	}
	response = strings.Replace(response, match[0], "", 1)

	prompt := strings.TrimSpace(match[1])
	if p.images == nil || !p.images.Enabled() || prompt == "" {
		return response, cards
	}

	card := entity.ActionCard{
		Type:      entity.ActionImageGen,
		Label:     "Image generated",
		Detail:    truncate(prompt, 120),
		Timestamp: time.Now(),
	}
	path, err := p.images.Generate(ctx, prompt)
	if err != nil {
		p.logger.Warn("Image generation failed", zap.Error(err))
		card.Label = "Image generation failed"
		card.Output = err.Error()
	} else {
		card.Success = true
		card.Output = path
		p.logAction(ctx, entity.ActivityImage, "Generated an image", prompt)
	}
	return response, append(cards, card)
}

func (p *ActionPipeline) processSocialPost(ctx context.Context, response string, cards []entity.ActionCard) (string, []entity.ActionCard) {
	match := moltPostRe.FindStringSubmatchIndex(response)
	if match == nil {
		return response, cards
	}

	rest := response[match[2]:match[3]]
	var title, body string
	if i := strings.Index(rest, "|"); i >= 0 {
		title = strings.TrimSpace(rest[:i])
		body = strings.TrimSpace(rest[i+1:])
		response = response[:match[0]] + response[match[1]:]
	} else {
		// Title on the marker line, body on the following lines up to a
		// blank line or end of response.
		title = strings.TrimSpace(rest)
		after := response[match[1]:]
		end := len(after)
		if i := strings.Index(after, "\n\n"); i >= 0 {
			end = i
		}
		body = strings.TrimSpace(after[:end])
		response = response[:match[0]] + after[end:]
	}

	if p.social == nil || !p.social.Enabled() || title == "" || body == "" {
		return response, cards
	}

	card := entity.ActionCard{
		Type:      entity.ActionMoltbook,
		Label:     "Posted to Moltbook",
		Detail:    truncate(title, 120),
		Timestamp: time.Now(),
	}
	postID, err := p.social.CreatePost(ctx, title, body)
	if err != nil {
		p.logger.Warn("Moltbook post failed", zap.Error(err))
		card.Label = "Moltbook post failed"
		card.Output = err.Error()
	} else {
		card.Success = true
		card.Output = postID
		p.logAction(ctx, entity.ActivityMoltbook, "Posted to Moltbook", title)
	}
	return response, append(cards, card)
}

func (p *ActionPipeline) processCodeBlocks(ctx context.Context, userMsg, response string, cards []entity.ActionCard) []entity.ActionCard {
	matches := codeBlockRe.FindAllStringSubmatch(response, maxCodeBlocksPerResponse)
	for _, match := range matches {
		lang := strings.ToLower(match[1])
		code := strings.TrimSpace(match[2])
		if code == "" {
			continue
		}

		work := &entity.CreativeWork{
			Timestamp: time.Now(),
			Mode:      entity.CreativeCode,
			Language:  lang,
			Prompt:    truncate(userMsg, 500),
			Content:   code,
		}

		if p.runner != nil && p.runner.Supports(lang) {
			card := entity.ActionCard{
				Type:      entity.ActionCodeRun,
				Label:     fmt.Sprintf("Ran %s code", lang),
				Timestamp: time.Now(),
			}
			output, err := p.runner.Run(ctx, lang, code)
			if len(output) > maxRunOutputBytes {
				output = output[:maxRunOutputBytes]
			}
			work.Executed = true
			work.Output = output
			if err != nil {
				p.logger.Debug("Code execution failed", zap.String("language", lang), zap.Error(err))
				card.Label = fmt.Sprintf("%s code failed", lang)
				card.Output = output
				if output == "" {
					card.Output = err.Error()
				}
			} else {
				card.Success = true
				card.Output = output
				p.logAction(ctx, entity.ActivityCodeRun, "Executed "+lang+" code", truncate(output, 200))
			}
			cards = append(cards, card)
		}

		if err := p.creative.Save(ctx, work); err != nil {
			p.logger.Warn("Failed to save code output", zap.Error(err))
		}
	}
	return cards
}

func (p *ActionPipeline) processEmailIntent(ctx context.Context, userMsg, response string, cards []entity.ActionCard) []entity.ActionCard {
	if p.email == nil || !p.email.Enabled() {
		return cards
	}
	msg := strings.ToLower(userMsg)
	if !strings.Contains(msg, "email") || !(strings.Contains(msg, "send") || strings.Contains(msg, "mail me")) {
		return cards
	}

	resp := strings.ToLower(response)
	committed := false
	for _, phrase := range emailCommitPhrases {
		if strings.Contains(resp, phrase) {
			committed = true
			break
		}
	}
	if !committed {
		return cards
	}

	card := entity.ActionCard{
		Type:      entity.ActionEmailSend,
		Label:     "Email sent",
		Timestamp: time.Now(),
	}
	subject := fmt.Sprintf("A note from your AI - %s", time.Now().Format("Jan 02"))
	if err := p.email.Send(ctx, subject, response); err != nil {
		p.logger.Warn("Email send failed", zap.Error(err))
		card.Label = "Email send failed"
		card.Output = err.Error()
	} else {
		card.Success = true
		p.logAction(ctx, entity.ActivityEmail, "Sent an email", subject)
	}
	return append(cards, card)
}

func (p *ActionPipeline) processCreative(ctx context.Context, userMsg, response string, cards []entity.ActionCard) []entity.ActionCard {
	mode := requestedCreativeMode(userMsg)
	if mode == "" || !looksLikeContent(response) {
		return cards
	}

	work := &entity.CreativeWork{
		Timestamp: time.Now(),
		Mode:      mode,
		Prompt:    truncate(userMsg, 500),
		Content:   response,
	}
	if err := p.creative.Save(ctx, work); err != nil {
		p.logger.Warn("Failed to save creative output", zap.Error(err))
		return cards
	}

	p.logAction(ctx, entity.ActivityJournal, "Saved a "+mode, truncate(userMsg, 120))
	return append(cards, entity.ActionCard{
		Type:      entity.ActionCreative,
		Label:     "Saved " + mode,
		Detail:    truncate(userMsg, 120),
		Success:   true,
		Timestamp: time.Now(),
	})
}

// requestedCreativeMode classifies from the prompt only, never the
// response. Conservative on purpose.
func requestedCreativeMode(userMsg string) string {
	msg := strings.ToLower(userMsg)
	for _, cm := range creativeModePhrases {
		for _, phrase := range cm.phrases {
			if strings.Contains(msg, phrase) {
				return cm.mode
			}
		}
	}
	return ""
}

// looksLikeContent filters out clarifying questions and stubs.
func looksLikeContent(response string) bool {
	if len(response) < minCreativeLength {
		return false
	}
	if strings.Count(response, "?") >= 4 {
		return false
	}
	opening := strings.ToLower(truncate(strings.TrimSpace(response), 60))
	for _, opener := range clarifyingOpeners {
		if strings.HasPrefix(opening, opener) {
			return false
		}
	}
	return true
}

func (p *ActionPipeline) logAction(ctx context.Context, eventType, label, detail string) {
	err := p.activity.Log(ctx, &entity.ActivityEvent{
		Timestamp: time.Now(),
		Type:      eventType,
		Label:     label,
		Detail:    detail,
	})
	if err != nil {
		p.logger.Warn("Failed to log action activity", zap.Error(err))
	}
}
