package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/pkg/errors"
)

// Mode-specific guidance prepended to the system prompt.
var creativeSystems = map[string]string{
	entity.CreativeCode:   "You are a skilled programmer. Write clean, working, well-commented code. Output only the code in a single fenced block unless asked otherwise.",
	entity.CreativeStory:  "You are a gifted storyteller. Write vivid, complete short fiction with a beginning, middle and end.",
	entity.CreativePoem:   "You are a poet. Write original poetry with attention to rhythm and imagery. Output only the poem.",
	entity.CreativeEssay:  "You are a thoughtful essayist. Write a structured, reflective piece with a clear through-line.",
	entity.CreativeLetter: "You are writing a sincere, well-formed letter. Keep the register warm and personal.",
}

var (
	pythonHintRe = regexp.MustCompile(`\bdef \w+\(|import \w+|from \w+ import|print\(`)
	jsHintRe     = regexp.MustCompile(`\bfunction \w+\(|const |let |var |console\.log`)
	bashHintRe   = regexp.MustCompile(`(?m)^#!/bin/bash|^\s*echo |^\s*if \[`)
	fencedRe     = regexp.MustCompile("(?s)```(\\w*)\\n(.*?)```")
)

// CreativeStudio drives deliberate creative work: generation on request,
// refinement of an existing piece, and execution of code pieces.
type CreativeStudio struct {
	works       repository.CreativeRepository
	gate        Gate
	runner      CodeRunner // nil when execution is disabled
	temperature func() float64
	logger      *zap.Logger
}

func NewCreativeStudio(works repository.CreativeRepository, gate Gate, runner CodeRunner, temperature func() float64, logger *zap.Logger) *CreativeStudio {
	return &CreativeStudio{
		works:       works,
		gate:        gate,
		runner:      runner,
		temperature: temperature,
		logger:      logger.With(zap.String("engine", "creative")),
	}
}

// Generate produces a new work in the given mode and saves it.
func (s *CreativeStudio) Generate(ctx context.Context, prompt, mode, language string) (*entity.CreativeWork, error) {
	system, ok := creativeSystems[mode]
	if !ok {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("unknown creative mode: %s", mode))
	}
	if mode == entity.CreativeCode && language != "" {
		system += " Use " + language + "."
	}

	content, err := s.gate.Generate(ctx, &GenerateRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: s.temperature(),
	})
	if err != nil {
		return nil, err
	}

	work := &entity.CreativeWork{
		Timestamp: time.Now(),
		Mode:      mode,
		Prompt:    prompt,
		Content:   strings.TrimSpace(content),
	}
	if mode == entity.CreativeCode {
		if lang, code := firstCodeBlock(content); code != "" {
			work.Content = code
			work.Language = DetectLanguage(code, lang)
		} else {
			work.Language = DetectLanguage(work.Content, language)
		}
	}

	if err := s.works.Save(ctx, work); err != nil {
		return nil, err
	}
	s.logger.Info("Creative work generated", zap.String("mode", mode), zap.Int64("id", work.ID))
	return work, nil
}

// Refine rewrites an existing work following the instruction, saved as a new row.
func (s *CreativeStudio) Refine(ctx context.Context, id int64, instruction string) (*entity.CreativeWork, error) {
	original, err := s.works.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	system := "You revise existing work. Apply the requested change and output only the full revised piece, nothing else."
	prompt := fmt.Sprintf("Here is a %s:\n\n%s\n\nRevise it as follows: %s", original.Mode, original.Content, instruction)

	content, err := s.gate.Generate(ctx, &GenerateRequest{
		Prompt:      prompt,
		System:      system,
		Temperature: s.temperature(),
	})
	if err != nil {
		return nil, err
	}

	revised := &entity.CreativeWork{
		Timestamp: time.Now(),
		Mode:      original.Mode,
		Language:  original.Language,
		Prompt:    instruction,
		Content:   strings.TrimSpace(content),
	}
	if original.Mode == entity.CreativeCode {
		if _, code := firstCodeBlock(content); code != "" {
			revised.Content = code
		}
	}
	if err := s.works.Save(ctx, revised); err != nil {
		return nil, err
	}
	return revised, nil
}

// Execute runs a saved code work and writes the output back onto it.
func (s *CreativeStudio) Execute(ctx context.Context, id int64) (*entity.CreativeWork, error) {
	work, err := s.works.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if work.Mode != entity.CreativeCode {
		return nil, errors.NewInvalidInputError("only code works can be executed")
	}
	if s.runner == nil || !s.runner.Supports(work.Language) {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("language %q is not runnable here", work.Language))
	}

	output, runErr := s.runner.Run(ctx, work.Language, work.Content)
	work.Executed = true
	work.Output = output
	if runErr != nil {
		work.Output = fmt.Sprintf("%s\n[error: %v]", output, runErr)
	}
	if err := s.works.Save(ctx, work); err != nil {
		return nil, err
	}
	return work, nil
}

// History returns recent works, newest first.
func (s *CreativeStudio) History(ctx context.Context, limit int) ([]*entity.CreativeWork, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.works.FindRecent(ctx, limit)
}

// DetectLanguage guesses a runnable language from content, hint wins.
func DetectLanguage(code, hint string) string {
	h := strings.ToLower(hint)
	for _, lang := range []string{"python", "javascript", "bash"} {
		if strings.Contains(h, lang) {
			return lang
		}
	}
	switch {
	case pythonHintRe.MatchString(code):
		return "python"
	case jsHintRe.MatchString(code):
		return "javascript"
	case bashHintRe.MatchString(code):
		return "bash"
	}
	return "python"
}

// firstCodeBlock returns (language, content) of the first fenced block, or "".
func firstCodeBlock(text string) (string, string) {
	m := fencedRe.FindStringSubmatch(text)
	if m == nil {
		return "", ""
	}
	return strings.ToLower(m[1]), strings.TrimSpace(m[2])
}
