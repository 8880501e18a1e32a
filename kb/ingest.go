package kb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// maxPageSize bounds a fetched page body.
const maxPageSize = 5 * 1024 * 1024 // 5MB

// IngestURL fetches a web page, extracts its readable article content, and
// indexes it as markdown under the page URL as source.
func (s *Store) IngestURL(ctx context.Context, pageURL string) error {
	parsed, err := url.Parse(pageURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid page url: %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return fmt.Errorf("build page request: %w", err)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return fmt.Errorf("read page body: %w", err)
	}

	title, text, err := extractArticle(body, parsed)
	if err != nil {
		return fmt.Errorf("extract article from %s: %w", pageURL, err)
	}

	s.AddDocument(pageURL, title, text)
	s.logger.Info("ingested page", "url", pageURL, "title", title, "chunks", s.Len())
	return nil
}

// extractArticle pulls readable content out of an HTML page and converts it
// to markdown. When readability rejects the page, it falls back to the raw
// document title plus stripped text.
func extractArticle(page []byte, pageURL *url.URL) (title, text string, err error) {
	article, rerr := readability.FromReader(strings.NewReader(string(page)), pageURL)
	if rerr == nil && strings.TrimSpace(article.TextContent) != "" {
		converter := md.NewConverter("", true, nil)
		markdown, cerr := converter.ConvertString(article.Content)
		if cerr != nil {
			// Conversion is best effort; plain text still indexes fine.
			markdown = article.TextContent
		}
		return article.Title, markdown, nil
	}

	// Fallback: title tag plus visible text.
	doc, perr := html.Parse(strings.NewReader(string(page)))
	if perr != nil {
		return "", "", fmt.Errorf("page is not readable html: %w", perr)
	}
	title = documentTitle(doc)
	text = visibleText(doc)
	if strings.TrimSpace(text) == "" {
		return "", "", fmt.Errorf("no readable content")
	}
	return title, text, nil
}

// documentTitle finds the <title> element's text.
func documentTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := documentTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// visibleText concatenates text nodes outside script/style elements.
func visibleText(n *html.Node) string {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(visibleText(c))
	}
	return b.String()
}
