package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"BookmarkScanner/internal/app"
	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/identifier"
	"BookmarkScanner/internal/sanitize"
	"BookmarkScanner/internal/surface"
)

// cmdIO carries the streams a command reads from and writes to.
type cmdIO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(a *app.Application, in io.Reader, out, errOut io.Writer) *cli.App {
	streams := cmdIO{in: in, out: out, errOut: errOut}
	cliApp := &cli.App{
		Name:      "bookmarkscanner",
		Usage:     "Discover, extract and analyse saved social media posts",
		Version:   Version,
		Writer:    out,
		ErrWriter: errOut,
		Commands: []*cli.Command{
			serveCmd(a),
			scanCmd(a, streams),
			extractCmd(a, streams),
			fetchCmd(a, streams),
			analyzeCmd(a, streams),
			batchCmd(a, streams),
			statsCmd(a, streams),
			exportCmd(a, streams),
		},
	}
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

func serveCmd(a *app.Application) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP messaging API",
		Action: func(c *cli.Context) error {
			return a.Serve(c.Context)
		},
	}
}

func markupFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "HTML file to read (defaults to stdin)"},
		&cli.StringFlag{Name: "base", Value: "https://x.com/i/bookmarks", Usage: "Base URL for relative links"},
	}
}

func scanCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Discover post URLs in a saved bookmarks page",
		Flags: markupFlags(),
		Action: func(c *cli.Context) error {
			surf, err := staticSurface(c, s)
			if err != nil {
				return outputError(err)
			}
			urls, err := a.Scanner.Scan(c.Context, surf)
			a.Metrics.ObserveScan(len(urls), err)
			if err != nil {
				return outputError(err)
			}
			if urls == nil {
				urls = []string{}
			}
			return outputJSON(s.out, map[string]any{"urls": urls, "count": len(urls)})
		},
	}
}

func extractCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Extract post text from a saved page",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Post URL to locate on the page; omit to summarise the whole page"},
		}, markupFlags()...),
		Action: func(c *cli.Context) error {
			target := c.String("url")
			if target == "" {
				markup, err := readMarkup(c, s)
				if err != nil {
					return outputError(err)
				}
				return outputJSON(s.out, map[string]string{"content": a.Extractor.FromMarkup(markup)})
			}

			surf, err := staticSurface(c, s)
			if err != nil {
				return outputError(err)
			}
			text, err := a.Extractor.FromSurface(c.Context, surf, target)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s.out, map[string]string{"content": text})
		},
	}
}

func fetchCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Download a page and print its text",
		ArgsUsage: "<url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(fmt.Errorf("expected exactly one url"))
			}
			text, err := a.Fetcher.Fetch(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s.out, map[string]string{"content": text})
		},
	}
}

func analyzeCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Analyse a single post",
		ArgsUsage: "<post-url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(fmt.Errorf("expected exactly one post url"))
			}
			rec, err := a.Analyzer.AnalyzeURL(c.Context, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(s.out, rec)
		},
	}
}

func batchCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Analyse up to 50 posts in order",
		ArgsUsage: "[post-url...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "File with one post URL per line (- for stdin)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress progress output"},
		},
		Action: func(c *cli.Context) error {
			urls := c.Args().Slice()
			if path := c.String("file"); path != "" {
				listed, err := readLines(path, s.in)
				if err != nil {
					return outputError(err)
				}
				urls = append(urls, listed...)
			}
			if len(urls) == 0 {
				return outputError(fmt.Errorf("no post urls given"))
			}

			emit := func(ev domain.BatchEvent) {
				if c.Bool("quiet") || ev.Type != domain.EventProgress {
					return
				}
				fmt.Fprintf(s.errOut, "[%d/%d] %s\n", ev.Completed, ev.Total, ev.Results[len(ev.Results)-1].Title)
			}
			results := a.Batch.RunBatch(c.Context, urls, emit)
			return outputJSON(s.out, map[string]any{"results": results})
		},
	}
}

func statsCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show usage counters and recent history",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "History entries to show"},
		},
		Action: func(c *cli.Context) error {
			usage, err := a.Repository.Usage(c.Context)
			if err != nil {
				return outputError(err)
			}
			history, err := a.Repository.History(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			if history == nil {
				history = []domain.AnalysisRecord{}
			}
			return outputJSON(s.out, map[string]any{"usage": usage, "history": history})
		},
	}
}

func exportCmd(a *app.Application, s cmdIO) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export recent analysis history using the configured format",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: domain.MaxBatchSize, Usage: "Records to export"},
		},
		Action: func(c *cli.Context) error {
			history, err := a.Repository.History(c.Context, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			if len(history) == 0 {
				return outputError(fmt.Errorf("nothing to export"))
			}
			path, err := a.Exporter.Export(c.Context, history)
			if err != nil {
				return outputError(err)
			}
			if err := a.Repository.RecordExport(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(s.out, map[string]any{"path": path, "count": len(history)})
		},
	}
}

func staticSurface(c *cli.Context, s cmdIO) (*surface.Static, error) {
	markup, err := readMarkup(c, s)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(c.String("base"))
	if err != nil || base.Host == "" {
		base = identifier.DefaultBase
	}
	return surface.NewStatic(markup, base)
}

func readMarkup(c *cli.Context, s cmdIO) (string, error) {
	if path := c.String("file"); path != "" && path != "-" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return string(raw), nil
	}
	raw, err := io.ReadAll(s.in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}

func readLines(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return lines, nil
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the terminal without markup or internal detail.
func outputError(err error) error {
	return cli.Exit(sanitize.Error(err), 1)
}
