package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"

	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
)

// Format is an export file format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

const uncategorized = "Uncategorized"

var htmlPolicy = bluemonday.UGCPolicy()

// ParseFormat accepts the configured format names and common aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// Extension is the file suffix for f.
func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

// Exporter writes analysis records to files in the configured directory.
type Exporter struct {
	format       Format
	directory    string
	pattern      string
	groupByTopic bool
	now          func() time.Time
}

var _ ports.Exporter = (*Exporter)(nil)

// New builds an exporter from configuration.
func New(cfg config.ExportConfig) (*Exporter, error) {
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	pattern := cfg.FilenamePattern
	if pattern == "" {
		pattern = "bookmarks-{date}-{count}"
	}
	return &Exporter{
		format:       format,
		directory:    cfg.Directory,
		pattern:      pattern,
		groupByTopic: cfg.GroupByTopic,
		now:          time.Now,
	}, nil
}

// Export renders records and writes them to a new file, returning its path.
func (e *Exporter) Export(ctx context.Context, records []domain.AnalysisRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := Render(&buf, records, e.format, e.groupByTopic); err != nil {
		return "", err
	}

	if e.directory != "" {
		if err := os.MkdirAll(e.directory, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}
	name := FileName(e.pattern, e.now(), len(records)) + "." + e.format.Extension()
	path := filepath.Join(e.directory, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// FileName expands {date}, {time} and {count} in pattern and strips path separators.
func FileName(pattern string, now time.Time, count int) string {
	name := strings.NewReplacer(
		"{date}", now.Format("2006-01-02"),
		"{time}", now.Format("150405"),
		"{count}", strconv.Itoa(count),
	).Replace(pattern)
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' {
			return '-'
		}
		return r
	}, name)
	if strings.TrimSpace(name) == "" {
		return "bookmarks"
	}
	return name
}

// Render writes records to w in the given format.
func Render(w io.Writer, records []domain.AnalysisRecord, format Format, groupByTopic bool) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, records, groupByTopic)
	case FormatCSV:
		return renderCSV(w, records, groupByTopic)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(records, groupByTopic))
		return err
	case FormatHTML:
		return renderHTML(w, records, groupByTopic)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

type group struct {
	Topic   string                  `json:"topic"`
	Records []domain.AnalysisRecord `json:"records"`
}

// groups buckets records by topic, sorted by topic; order inside a bucket is kept.
func groups(records []domain.AnalysisRecord) []group {
	index := map[string]int{}
	var out []group
	for _, rec := range records {
		topic := strings.TrimSpace(rec.Topic)
		if topic == "" {
			topic = uncategorized
		}
		i, ok := index[topic]
		if !ok {
			i = len(out)
			index[topic] = i
			out = append(out, group{Topic: topic})
		}
		out[i].Records = append(out[i].Records, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out
}

func renderJSON(w io.Writer, records []domain.AnalysisRecord, groupByTopic bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if groupByTopic {
		return enc.Encode(groups(records))
	}
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	return enc.Encode(records)
}

func renderCSV(w io.Writer, records []domain.AnalysisRecord, groupByTopic bool) error {
	if groupByTopic {
		var ordered []domain.AnalysisRecord
		for _, g := range groups(records) {
			ordered = append(ordered, g.Records...)
		}
		records = ordered
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"url", "title", "kind", "captured_at", "executive_summary", "action_point", "topic", "summary", "hashtags", "error"}); err != nil {
		return err
	}
	for _, rec := range records {
		action := ""
		if rec.ActionPoint != nil {
			action = *rec.ActionPoint
		}
		captured := ""
		if !rec.CapturedAt.IsZero() {
			captured = rec.CapturedAt.UTC().Format(time.RFC3339)
		}
		if err := cw.Write([]string{
			rec.URL, rec.Title, string(rec.Kind), captured, rec.ExecutiveSummary,
			action, rec.Topic, rec.Summary, strings.Join(rec.Hashtags, " "), rec.Error,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Markdown renders records as a Markdown document.
func Markdown(records []domain.AnalysisRecord, groupByTopic bool) string {
	var b strings.Builder
	b.WriteString("# Bookmarks\n")

	if !groupByTopic {
		b.WriteString("\n")
		for _, rec := range records {
			writeMarkdownItem(&b, rec, "##")
		}
		return b.String()
	}

	for _, g := range groups(records) {
		fmt.Fprintf(&b, "\n## %s\n\n", oneLine(g.Topic))
		for _, rec := range g.Records {
			writeMarkdownItem(&b, rec, "###")
		}
	}
	return b.String()
}

func writeMarkdownItem(b *strings.Builder, rec domain.AnalysisRecord, heading string) {
	title := oneLine(rec.Title)
	if title == "" {
		title = rec.URL
	}
	fmt.Fprintf(b, "%s [%s](%s)\n\n", heading, title, rec.URL)
	if text := oneLine(rec.Headline()); text != "" && text != title {
		fmt.Fprintf(b, "%s\n\n", text)
	}
	if rec.ActionPoint != nil {
		fmt.Fprintf(b, "**Next:** %s\n\n", oneLine(*rec.ActionPoint))
	}
	if len(rec.Hashtags) > 0 {
		fmt.Fprintf(b, "%s\n\n", strings.Join(rec.Hashtags, " "))
	}
	if rec.Error != "" {
		fmt.Fprintf(b, "_Error:_ %s\n\n", oneLine(rec.Error))
	}
}

func renderHTML(w io.Writer, records []domain.AnalysisRecord, groupByTopic bool) error {
	var body bytes.Buffer
	if err := goldmark.Convert([]byte(Markdown(records, groupByTopic)), &body); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	safe := htmlPolicy.SanitizeBytes(body.Bytes())

	if _, err := io.WriteString(w, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Bookmarks</title></head><body>\n"); err != nil {
		return err
	}
	if _, err := w.Write(safe); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</body></html>\n")
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
