package kb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Ibuprofen Dosing Guide</title></head>
<body>
<article>
<h1>Ibuprofen Dosing Guide</h1>
<p>Adults should not exceed 1200mg of ibuprofen per day without medical
supervision. Single doses above 400mg rarely add benefit and increase the
chance of stomach irritation, so spacing doses at least six hours apart is
the safer pattern for self treatment.</p>
<p>Take ibuprofen with food or milk. People with kidney disease, ulcers, or
on blood thinners should talk to a clinician before using it at all.</p>
</article>
<script>trackPageView();</script>
</body>
</html>`

func TestIngestURLIndexesArticle(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articlePage))
	}))
	defer ts.Close()

	s := NewStore(nil)
	s.SetEnabled(true)
	require.NoError(t, s.IngestURL(context.Background(), ts.URL))

	out := s.Context("ibuprofen daily maximum")
	assert.Contains(t, out, "1200mg")
	assert.NotContains(t, out, "trackPageView")
}

func TestIngestURLRejectsBadURL(t *testing.T) {
	s := NewStore(nil)
	assert.Error(t, s.IngestURL(context.Background(), "ftp://example.com/doc"))
	assert.Error(t, s.IngestURL(context.Background(), "not a url at all\x00"))
}

func TestIngestURLNonOKStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	s := NewStore(nil)
	err := s.IngestURL(context.Background(), ts.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestExtractArticleFallsBackToVisibleText(t *testing.T) {
	page := []byte(`<html><head><title>Plain Note</title></head><body>` +
		`<div>Short note.</div><style>body{}</style></body></html>`)
	title, text, err := extractArticle(page, mustParseURL(t, "http://example.com/note"))
	require.NoError(t, err)
	assert.Equal(t, "Plain Note", title)
	assert.Contains(t, text, "Short note.")
	assert.NotContains(t, text, "body{}")
}
