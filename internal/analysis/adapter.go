// Package analysis turns post text into an AnalysisRecord using a hosted model.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/infrastructure/llm"
	"BookmarkScanner/internal/ports"
	"BookmarkScanner/internal/sanitize"
)

const promptTemplate = `You analyse saved social media posts.
Reply with JSON only, no prose and no code fences, using exactly this shape:
{"executive_summary": "<one or two sentences>", "action_point": "<one concrete next step, or null>"}

Post URL: %s
Post content:
%s`

// Adapter builds prompts, calls the generator and parses its reply.
type Adapter struct {
	generator ports.TextGenerator
	logger    *slog.Logger
}

// New wires a generator. A nil generator makes every analysis a fallback.
func New(generator ports.TextGenerator, logger *slog.Logger) *Adapter {
	return &Adapter{generator: generator, logger: logger}
}

type reply struct {
	ExecutiveSummary *string `json:"executive_summary"`
	ActionPoint      *string `json:"action_point"`
}

// Prompt renders the fixed instruction around sanitized inputs.
func Prompt(rawURL, content string) string {
	return fmt.Sprintf(promptTemplate, identifier.Sanitize(rawURL), sanitize.Content(content))
}

// Analyze returns a remote analysis for the post. Transport failures, non-2xx
// replies and timeouts come back as errors so callers can retry them; a reply
// that arrives but cannot be used yields the fallback record instead.
func (a *Adapter) Analyze(ctx context.Context, rawURL, content string) (domain.AnalysisRecord, error) {
	if a.generator == nil {
		a.debug("no generator configured, using fallback", "url", rawURL)
		return Fallback(rawURL), nil
	}

	text, err := a.generator.Generate(ctx, Prompt(rawURL, content))
	if err != nil {
		if errors.Is(err, llm.ErrEmptyReply) {
			a.debug("reply without text, using fallback", "url", rawURL)
			return Fallback(rawURL), nil
		}
		return domain.AnalysisRecord{}, fmt.Errorf("analyze %s: %w", identifier.Sanitize(rawURL), err)
	}

	parsed, ok := parseReply(text)
	if !ok {
		a.debug("unparseable reply, using fallback", "url", rawURL)
		return Fallback(rawURL), nil
	}

	return domain.AnalysisRecord{
		URL:              identifier.Sanitize(rawURL),
		Kind:             domain.KindAnalysis,
		ExecutiveSummary: strings.TrimSpace(*parsed.ExecutiveSummary),
		ActionPoint:      parsed.ActionPoint,
	}, nil
}

func parseReply(text string) (reply, bool) {
	var parsed reply
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return reply{}, false
	}
	if parsed.ExecutiveSummary == nil || strings.TrimSpace(*parsed.ExecutiveSummary) == "" {
		return reply{}, false
	}
	if parsed.ActionPoint != nil {
		action := strings.TrimSpace(*parsed.ActionPoint)
		if action == "" {
			parsed.ActionPoint = nil
		} else {
			parsed.ActionPoint = &action
		}
	}
	return parsed, true
}

// stripFences removes a surrounding ``` or ```json block.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// Fallback builds the deterministic record used when no remote analysis is available.
func Fallback(rawURL string) domain.AnalysisRecord {
	host, label := origin(rawURL)

	summary := "Saved post from " + host
	if id, ok := identifier.StatusID(rawURL); ok {
		summary = fmt.Sprintf("Saved post %s from %s", id, host)
	}

	return domain.AnalysisRecord{
		URL:      identifier.Sanitize(rawURL),
		Kind:     domain.KindFallback,
		Topic:    displayName(label) + " post",
		Summary:  summary,
		Hashtags: []string{"#bookmark", "#" + label, "#social"},
	}
}

const (
	unknownHost  = "an unknown source"
	unknownLabel = "web"
)

// origin returns the normalized host and its leading label ("x", "twitter").
// Hosts that reduce to nothing map to the unknown source.
func origin(rawURL string) (string, string) {
	host, ok := identifier.Host(rawURL)
	if !ok {
		u, err := url.Parse(strings.TrimSpace(rawURL))
		if err != nil {
			return unknownHost, unknownLabel
		}
		host = strings.ToLower(u.Hostname())
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "mobile.")
	host = strings.Trim(host, ".")

	label := host
	if dot := strings.IndexByte(host, '.'); dot >= 0 {
		label = host[:dot]
	}
	if host == "" || label == "" {
		return unknownHost, unknownLabel
	}
	return host, label
}

func displayName(label string) string {
	switch label {
	case "x":
		return "X"
	case "", unknownLabel:
		return "Web"
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

func (a *Adapter) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
