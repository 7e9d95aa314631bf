package docx

import (
	"fmt"
	"os"
	"strings"

	goword "github.com/VantageDataChat/GoWord"
)

// Image is an embedded picture pulled out of a Word package.
type Image struct {
	Name string
	Data []byte
}

// Content is what the library fallback can recover from a DOCX.
type Content struct {
	Title      string
	Paragraphs []string
	Images     []Image
}

// Read opens a DOCX and returns its text paragraphs and embedded images.
// Legacy binary .doc files are not readable here.
func Read(path string) (c *Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("parse docx: %v", r)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := goword.OpenFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	c = &Content{
		Title:      strings.TrimSpace(doc.Properties.Title),
		Paragraphs: splitParagraphs(doc.ExtractText()),
	}
	for _, img := range doc.Images() {
		if len(img.Data) == 0 {
			continue
		}
		c.Images = append(c.Images, Image{Name: img.Name, Data: img.Data})
	}
	return c, nil
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimRight(p, " \t"); strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
