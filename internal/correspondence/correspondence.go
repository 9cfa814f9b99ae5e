// Package correspondence turns whatever the tenant pasted (plain text, an
// HTML fragment, or a raw saved message) into plain text for classification.
package correspondence

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Format is the detected shape of pasted correspondence
type Format string

const (
	FormatText    Format = "text"
	FormatHTML    Format = "html"
	FormatMessage Format = "message" // RFC 5322 message with headers
)

// Document is normalized correspondence
type Document struct {
	Format  Format
	From    string
	Subject string
	Text    string
}

// Content is what validation and classification read: the subject line, when
// there is one, followed by the body
func (d Document) Content() string {
	subject := strings.TrimSpace(d.Subject)
	if subject == "" {
		return d.Text
	}
	if d.Text == "" {
		return subject
	}
	return subject + "\n\n" + d.Text
}

var (
	htmlTagRegex    = regexp.MustCompile(`(?i)<\s*(html|body|p|div|br|table|span|a|b|strong|em|ul|ol|li)\b[^>]*>`)
	headerLineRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*:\s?`)
	blankRunRegex   = regexp.MustCompile(`\n{3,}`)

	// At least one of these must appear in the header block for a paste to be
	// treated as a whole message rather than text that starts with "Re:".
	messageHeaders = []string{"from", "to", "subject", "date", "content-type", "mime-version", "message-id"}
)

// Normalize converts raw correspondence to plain text. Unparseable input is
// returned trimmed, never rejected.
func Normalize(raw string) Document {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	switch {
	case looksLikeMessage(raw):
		if doc, ok := parseMessage(raw); ok {
			return doc
		}
	case looksLikeHTML(raw):
		return Document{Format: FormatHTML, Text: HTMLToText(raw)}
	}

	return Document{Format: FormatText, Text: strings.TrimSpace(raw)}
}

// looksLikeMessage checks for a header block before the first blank line
func looksLikeMessage(raw string) bool {
	headerEnd := strings.Index(raw, "\n\n")
	if headerEnd <= 0 {
		return false
	}

	known := 0
	scanner := bufio.NewScanner(strings.NewReader(raw[:headerEnd]))
	for scanner.Scan() {
		line := scanner.Text()
		// folded header continuation
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			continue
		}
		if !headerLineRegex.MatchString(line) {
			return false
		}
		name := strings.ToLower(line[:strings.Index(line, ":")])
		for _, h := range messageHeaders {
			if name == h {
				known++
				break
			}
		}
	}
	return known >= 2
}

func looksLikeHTML(raw string) bool {
	return htmlTagRegex.MatchString(raw)
}

func parseMessage(raw string) (Document, bool) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil {
		return Document{}, false
	}
	defer mr.Close()

	doc := Document{Format: FormatMessage}
	doc.Subject, _ = mr.Header.Subject()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		doc.From = from[0].Address
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if (ct == "" || strings.HasPrefix(ct, "text/plain")) && plain == "" {
				plain = string(body)
			} else if strings.HasPrefix(ct, "text/html") && html == "" {
				html = string(body)
			}
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		doc.Text = tidy(plain)
	case html != "":
		doc.Text = HTMLToText(html)
	default:
		return Document{}, false
	}
	return doc, true
}

// HTMLToText extracts readable text, keeping paragraph breaks
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return tidy(html)
	}

	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n\n")
	})

	return tidy(doc.Text())
}

// tidy trims each line and collapses runs of blank lines
func tidy(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRunRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
