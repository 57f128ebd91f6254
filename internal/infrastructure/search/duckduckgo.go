package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nexira/nexira/internal/domain/entity"
	"github.com/nexira/nexira/internal/domain/repository"
	"github.com/nexira/nexira/internal/domain/service"
	"github.com/nexira/nexira/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	instantAPI = "https://api.duckduckgo.com/"
	htmlAPI    = "https://html.duckduckgo.com/html/"
	userAgent  = "Mozilla/5.0 (compatible; Nexira/1.0)"
)

// Explicit phrases that call for a live lookup.
var explicitSearchPhrases = []string{
	"search for ", "search the web", "look up ", "google ",
	"find the latest", "what is the latest", "what are the latest",
	"current news", "news about ", "news on ",
	"stock price", "stock ticker", "share price",
	"bitcoin price", "crypto price", "btc price", "eth price",
	"coin price", "market cap",
	"who is the current ", "who won the ", "who won last",
	"what happened to ", "what happened with ",
	"what's the weather", "weather in ", "weather forecast",
	"what's the current ", "what is the current ",
	"latest version", "latest release", "current version",
}

var timeSensitivePhrases = []string{
	"right now", "live score", "live game", "breaking news", "just happened",
}

var queryFillers = []string{"can you ", "please ", "could you ", "i need you to "}

var (
	resultBlockRe = regexp.MustCompile(`(?s)<a class="result__a"[^>]*href="([^"]*)"[^>]*>(.*?)</a>.*?<a class="result__snippet"[^>]*>(.*?)</a>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo 联网搜索服务, 免 API key
// 先走 Instant Answer API, 无结果时回退 HTML 抓取
type DuckDuckGo struct {
	maxResults int
	client     *http.Client
	log        repository.SearchLogRepository
	logger     *zap.Logger
}

func NewDuckDuckGo(cfg *config.SearchConfig, log repository.SearchLogRepository, logger *zap.Logger) *DuckDuckGo {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DuckDuckGo{
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: timeout},
		log:        log,
		logger:     logger.With(zap.String("component", "search")),
	}
}

var _ service.Searcher = (*DuckDuckGo)(nil)

// Search 查询并记录. 返回 {title, url, snippet} 列表
func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]*service.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = d.maxResults
	}

	results, err := d.instant(ctx, query)
	if err != nil {
		d.logger.Debug("Instant answer failed, falling back to HTML", zap.Error(err))
	}
	if len(results) == 0 {
		results, err = d.scrape(ctx, query, maxResults)
		if err != nil {
			d.record(ctx, query, nil)
			return nil, err
		}
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	d.record(ctx, query, results)
	d.logger.Info("Web search complete", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// ShouldSearch 保守判断是否需要联网, 只认清晰信号
func (d *DuckDuckGo) ShouldSearch(message string) bool {
	return ExtractQuery(message) != ""
}

// ExtractQuery 返回应搜索的查询串, 不需要搜索时返回空
func ExtractQuery(message string) string {
	msg := strings.ToLower(strings.TrimSpace(message))
	if len(msg) < 8 {
		return ""
	}

	for _, phrase := range explicitSearchPhrases {
		if strings.Contains(msg, phrase) {
			query := strings.TrimSpace(message)
			lower := strings.ToLower(query)
			for _, filler := range queryFillers {
				if strings.HasPrefix(lower, filler) {
					query = query[len(filler):]
					break
				}
			}
			if len(query) > 120 {
				query = query[:120]
			}
			return strings.TrimSpace(query)
		}
	}
	for _, phrase := range timeSensitivePhrases {
		if strings.Contains(msg, phrase) {
			query := strings.TrimSpace(message)
			if len(query) > 120 {
				query = query[:120]
			}
			return query
		}
	}
	return ""
}

// FormatForPrompt 把结果包装成系统提示注入块
func (d *DuckDuckGo) FormatForPrompt(query string, results []*service.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("<<LIVE_SEARCH_EMPTY: '%s'>>", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<<LIVE_SEARCH_RESULTS for: '%s'>>\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.Snippet)
		if r.URL != "" {
			fmt.Fprintf(&b, "   Source: %s\n", r.URL)
		}
	}
	b.WriteString("<<END_LIVE_SEARCH — integrate this information naturally, do not reproduce these tags>>")
	return b.String()
}

type instantResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (d *DuckDuckGo) instant(ctx context.Context, query string) ([]*service.SearchResult, error) {
	params := url.Values{
		"q":       {query},
		"format":  {"json"},
		"no_html": {"1"},
		"t":       {"Nexira"},
	}
	req, err := http.NewRequestWithContext(ctx, "GET", instantAPI+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("instant answer request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var data instantResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("parse instant answer: %w", err)
	}

	var results []*service.SearchResult
	if data.AbstractText != "" {
		title := data.Heading
		if title == "" {
			title = query
		}
		results = append(results, &service.SearchResult{
			Title:   title,
			URL:     data.AbstractURL,
			Snippet: clip(data.AbstractText, 400),
		})
	}
	for i, topic := range data.RelatedTopics {
		if i == 4 {
			break
		}
		if topic.Text == "" {
			continue
		}
		results = append(results, &service.SearchResult{
			Title:   clip(topic.Text, 80),
			URL:     topic.FirstURL,
			Snippet: clip(topic.Text, 300),
		})
	}
	return results, nil
}

func (d *DuckDuckGo) scrape(ctx context.Context, query string, maxResults int) ([]*service.SearchResult, error) {
	form := url.Values{"q": {query}, "b": {""}}
	req, err := http.NewRequestWithContext(ctx, "POST", htmlAPI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var results []*service.SearchResult
	for _, m := range resultBlockRe.FindAllStringSubmatch(string(body), maxResults) {
		title := decodeEntities(strings.TrimSpace(htmlTagRe.ReplaceAllString(m[2], "")))
		snippet := decodeEntities(strings.TrimSpace(htmlTagRe.ReplaceAllString(m[3], "")))
		if title == "" || snippet == "" {
			continue
		}
		results = append(results, &service.SearchResult{
			Title:   title,
			URL:     m[1],
			Snippet: clip(snippet, 300),
		})
	}
	return results, nil
}

func (d *DuckDuckGo) record(ctx context.Context, query string, results []*service.SearchResult) {
	entry := &entity.SearchLogEntry{
		Timestamp:   time.Now(),
		Query:       query,
		Source:      "duckduckgo",
		ResultCount: len(results),
	}
	if len(results) > 0 {
		entry.Summary = clip(results[0].Title, 200)
	}
	if err := d.log.Log(ctx, entry); err != nil {
		d.logger.Warn("Failed to log search", zap.Error(err))
	}
}

var entityPairs = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&#x27;", "'", "&quot;", `"`,
)

func decodeEntities(s string) string {
	return entityPairs.Replace(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
