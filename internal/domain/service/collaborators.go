package service

import "context"

// SearchResult is one hit from the web search collaborator.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher is the web search collaborator. Implementations log every
// query; a nil Searcher means search is disabled.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]*SearchResult, error)

	// ShouldSearch reports whether the message calls for live results
	// (current events, explicit lookup requests).
	ShouldSearch(message string) bool

	// FormatForPrompt renders results as a system prompt block.
	FormatForPrompt(query string, results []*SearchResult) string
}

// SocialPoster publishes to the agent social network.
type SocialPoster interface {
	CreatePost(ctx context.Context, title, content string) (postID string, err error)
	Enabled() bool
}

// DiaryPoster shares a journal excerpt on the social network.
type DiaryPoster interface {
	PostDiaryEntry(ctx context.Context, aiName, content string) error
	AutoPostEnabled() bool
}

// EmailSender sends an email on behalf of the assistant.
type EmailSender interface {
	Send(ctx context.Context, subject, markdownBody string) error
	Enabled() bool
}

// ImageMaker renders an image from a text prompt and returns the stored
// file path.
type ImageMaker interface {
	Generate(ctx context.Context, prompt string) (path string, err error)
	Enabled() bool
}

// CodeRunner executes a snippet in the process sandbox and returns the
// captured output.
type CodeRunner interface {
	Run(ctx context.Context, language, code string) (output string, err error)
	Supports(language string) bool
}
