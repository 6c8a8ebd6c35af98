package extract

import (
	"errors"
	"strings"
	"testing"
)

// TestText_PlainText verifies .txt passes through with whitespace trimmed.
func TestText_PlainText(t *testing.T) {
	text, err := Text("notes.txt", strings.NewReader("  hello world \n"))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "hello world" {
		t.Errorf("Expected 'hello world', got %q", text)
	}
}

// TestText_Markdown verifies markdown formatting is stripped while the text
// content survives.
func TestText_Markdown(t *testing.T) {
	input := `# Report

This is **important** text with [a link](https://example.com).

- first item
- second item
`
	text, err := Text("report.md", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}

	for _, want := range []string{"Report", "important", "a link", "first item", "second item"} {
		if !strings.Contains(text, want) {
			t.Errorf("Extracted text missing %q:\n%s", want, text)
		}
	}
	for _, unwanted := range []string{"#", "**", "](", "- first"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("Extracted text still contains markup %q:\n%s", unwanted, text)
		}
	}
}

// TestText_MarkdownCodeBlock verifies fenced code content is kept without
// the fences.
func TestText_MarkdownCodeBlock(t *testing.T) {
	input := "Intro paragraph.\n\n```go\nfunc main() {}\n```\n"
	text, err := Text("snippet.md", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if !strings.Contains(text, "func main() {}") {
		t.Errorf("Code content missing:\n%s", text)
	}
	if strings.Contains(text, "```") {
		t.Errorf("Fence markers not stripped:\n%s", text)
	}
}

// TestText_MarkdownParagraphBoundaries verifies paragraphs stay separated.
func TestText_MarkdownParagraphBoundaries(t *testing.T) {
	input := "First paragraph.\n\nSecond paragraph.\n"
	text, err := Text("doc.md", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if !strings.Contains(text, "First paragraph.\n\nSecond paragraph.") {
		t.Errorf("Paragraph boundary lost:\n%q", text)
	}
}

// TestText_UnsupportedFormat verifies unknown extensions are rejected.
func TestText_UnsupportedFormat(t *testing.T) {
	_, err := Text("archive.zip", strings.NewReader("data"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

// TestText_EmptyContent verifies whitespace-only files are rejected.
func TestText_EmptyContent(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty.txt", ""},
		{"blank.txt", "   \n\t\n"},
		{"empty.md", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Text(tc.name, strings.NewReader(tc.content))
			if !errors.Is(err, ErrNoText) {
				t.Errorf("Expected ErrNoText, got %v", err)
			}
		})
	}
}

// TestText_ExtensionCaseInsensitive verifies .TXT matches .txt.
func TestText_ExtensionCaseInsensitive(t *testing.T) {
	text, err := Text("NOTES.TXT", strings.NewReader("content"))
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "content" {
		t.Errorf("Expected 'content', got %q", text)
	}
}
