// Package loader reads documents from disk and reduces them to plain text
// ready for segmentation.
package loader

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MaxFileSize caps the size of files Load will read
const MaxFileSize = 20 << 20

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrTooLarge    = errors.New("document exceeds maximum size")
)

// Kind identifies how a file's bytes are turned into text
type Kind string

const (
	KindText     Kind = "text"
	KindSubtitle Kind = "subtitle"
	KindMarkdown Kind = "markdown"
	KindPDF      Kind = "pdf"
)

var extensions = map[string]Kind{
	".txt":      KindText,
	".text":     KindText,
	".srt":      KindSubtitle,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".pdf":      KindPDF,
}

// Document is a loaded file reduced to plain text
type Document struct {
	Path    string
	Kind    Kind
	Content string
	Hash    string // SHA-256 of the raw file bytes
	Size    int64
	ModTime time.Time
}

// KindOf returns the document kind for path's extension
func KindOf(path string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Supported reports whether Load can read path
func Supported(path string) bool {
	_, ok := KindOf(path)
	return ok
}

// Load reads path and extracts its text
func Load(path string) (*Document, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var content string
	switch kind {
	case KindMarkdown:
		content = MarkdownText(raw)
	case KindPDF:
		content, err = pdfText(path)
		if err != nil {
			return nil, err
		}
	default:
		content = string(raw)
	}

	sum := sha256.Sum256(raw)
	return &Document{
		Path:    path,
		Kind:    kind,
		Content: content,
		Hash:    hex.EncodeToString(sum[:]),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// MarkdownText renders markdown source as plain prose. Block elements are
// separated by blank lines, soft line breaks become spaces and code blocks
// are dropped.
func MarkdownText(source []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if !entering {
				b.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
