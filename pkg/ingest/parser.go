package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrEmptyDocument indicates a parse produced no usable text.
var ErrEmptyDocument = errors.New("document contains no text")

// DetectType maps a file name to a document type by extension.
// Anything that is not PDF or markdown is treated as plain text.
func DetectType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "PDF"
	case ".md", ".markdown":
		return "MARKDOWN"
	default:
		return "TEXT"
	}
}

// Parser extracts plain text from raw file bytes.
type Parser interface {
	Parse(ctx context.Context, raw []byte) (string, error)
}

// ParserFor returns the parser for a document type.
func ParserFor(docType string) Parser {
	switch docType {
	case "PDF":
		return NewPDFParser()
	case "MARKDOWN":
		return &MarkdownParser{}
	default:
		return &PlainTextParser{}
	}
}

// PlainTextParser sanitizes raw bytes into valid UTF-8 text.
type PlainTextParser struct{}

func (p *PlainTextParser) Parse(_ context.Context, raw []byte) (string, error) {
	text := strings.ToValidUTF8(string(raw), "")
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// MarkdownParser strips common markdown formatting so only prose
// reaches the splitter and the embedder.
type MarkdownParser struct{}

var (
	mdCodeBlock    = regexp.MustCompile("(?s)```[^`]*```")
	mdInlineCode   = regexp.MustCompile("`[^`]+`")
	mdImage        = regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`)
	mdLink         = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	mdHeading      = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdBlockquote   = regexp.MustCompile(`(?m)^>\s*`)
	mdRule         = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	mdListMarker   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdNumberedList = regexp.MustCompile(`(?m)^\s*\d+\.\s+`)
	mdBlankRuns    = regexp.MustCompile(`\n{3,}`)
)

func (p *MarkdownParser) Parse(ctx context.Context, raw []byte) (string, error) {
	text, err := (&PlainTextParser{}).Parse(ctx, raw)
	if err != nil {
		return "", err
	}

	text = mdCodeBlock.ReplaceAllString(text, "")
	text = mdInlineCode.ReplaceAllString(text, "")
	text = mdImage.ReplaceAllString(text, "")
	text = mdLink.ReplaceAllString(text, "$1")
	text = mdHeading.ReplaceAllString(text, "")
	text = mdBlockquote.ReplaceAllString(text, "")
	text = mdRule.ReplaceAllString(text, "")
	text = mdListMarker.ReplaceAllString(text, "")
	text = mdNumberedList.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")
	text = mdBlankRuns.ReplaceAllString(text, "\n\n")

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// CommandRunner abstracts external command execution so PDF extraction
// can be tested without poppler installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDFParser extracts text by shelling out to pdftotext.
type PDFParser struct {
	runner CommandRunner
}

// NewPDFParser creates a PDF parser using the system pdftotext binary.
func NewPDFParser() *PDFParser {
	return &PDFParser{runner: execRunner{}}
}

// NewPDFParserWithRunner creates a PDF parser with a custom runner.
func NewPDFParserWithRunner(runner CommandRunner) *PDFParser {
	return &PDFParser{runner: runner}
}

func (p *PDFParser) Parse(ctx context.Context, raw []byte) (string, error) {
	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to stage pdf: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to stage pdf: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to stage pdf: %w", err)
	}

	out, err := p.runner.Run(ctx, "pdftotext", "-layout", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	return (&PlainTextParser{}).Parse(ctx, out)
}
