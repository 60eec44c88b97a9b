package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/young1lin/docsanswer/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

const samplePage = `<!doctype html>
<html>
  <head>
    <title>Webhooks</title>
    <style>.nav { color: red; }</style>
    <script>window.analytics = {};</script>
  </head>
  <body>
    <h1>Webhooks</h1>

    <p>Send   events to
       your endpoint &amp; verify signatures.</p>
    <br/>
  </body>
</html>`

func docsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(samplePage))
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"webhooks","events":["push"]}`))
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 25000)))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaput", http.StatusInternalServerError)
	})
	mux.HandleFunc("/image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	mux.HandleFunc("/blank", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><script>only()</script></body></html>"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/delayed", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("delayed page"))
	})
	mux.HandleFunc("/headers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.Header.Get("User-Agent") + " | " + r.Header.Get("Accept")))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(concurrency int) *Fetcher {
	return New(&config.FetchConfig{
		Timeout:     5,
		MaxChars:    10000,
		UserAgent:   "docsanswer-test",
		Concurrency: concurrency,
	}, nil)
}

func TestFetchHTMLIsStripped(t *testing.T) {
	srv := docsServer(t)

	doc, err := newTestFetcher(1).Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "Webhooks Webhooks Send events to your endpoint & verify signatures.", doc.Text)
	assert.Equal(t, srv.URL+"/page", doc.URL)
}

func TestFetchJSONIsSerialized(t *testing.T) {
	srv := docsServer(t)

	doc, err := newTestFetcher(1).Fetch(context.Background(), srv.URL+"/api")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"name\": \"webhooks\",\n  \"events\": [\n    \"push\"\n  ]\n}", doc.Text)
}

func TestFetchCapsLength(t *testing.T) {
	srv := docsServer(t)

	doc, err := newTestFetcher(1).Fetch(context.Background(), srv.URL+"/big")
	require.NoError(t, err)
	assert.Len(t, doc.Text, 10000)
}

func TestFetchSendsHeaders(t *testing.T) {
	srv := docsServer(t)

	doc, err := newTestFetcher(1).Fetch(context.Background(), srv.URL+"/headers")
	require.NoError(t, err)
	assert.Equal(t, "docsanswer-test | "+acceptHeader, doc.Text)
}

func TestFetchFailures(t *testing.T) {
	srv := docsServer(t)
	f := newTestFetcher(1)

	_, err := f.Fetch(context.Background(), srv.URL+"/broken")
	assert.ErrorContains(t, err, "HTTP 500")

	_, err = f.Fetch(context.Background(), srv.URL+"/image")
	assert.ErrorIs(t, err, ErrNotTextual)

	_, err = f.Fetch(context.Background(), srv.URL+"/blank")
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = f.Fetch(context.Background(), "://not a url")
	assert.Error(t, err)
}

func TestFetchTimeout(t *testing.T) {
	srv := docsServer(t)
	f := newTestFetcher(1)
	f.timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := f.Fetch(context.Background(), srv.URL+"/slow")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchAll(t *testing.T) {
	srv := docsServer(t)

	t.Run("empty list is absent", func(t *testing.T) {
		_, ok := newTestFetcher(1).FetchAll(context.Background(), nil)
		assert.False(t, ok)
	})

	t.Run("all failures are absent", func(t *testing.T) {
		_, ok := newTestFetcher(1).FetchAll(context.Background(), []string{
			srv.URL + "/broken",
			srv.URL + "/image",
		})
		assert.False(t, ok)
	})

	t.Run("failures are skipped", func(t *testing.T) {
		blob, ok := newTestFetcher(1).FetchAll(context.Background(), []string{
			srv.URL + "/broken",
			srv.URL + "/api",
		})
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(blob, "Source: "+srv.URL+"/api\n"))
		assert.NotContains(t, blob, "/broken")
		assert.NotContains(t, blob, DocSeparator)
	})

	t.Run("documents keep input order", func(t *testing.T) {
		for _, concurrency := range []int{1, 3} {
			blob, ok := newTestFetcher(concurrency).FetchAll(context.Background(), []string{
				srv.URL + "/delayed",
				srv.URL + "/api",
			})
			require.True(t, ok)

			parts := strings.Split(blob, DocSeparator)
			require.Len(t, parts, 2)
			assert.Equal(t, "Source: "+srv.URL+"/delayed\ndelayed page", parts[0])
			assert.True(t, strings.HasPrefix(parts[1], "Source: "+srv.URL+"/api\n"))
		}
	})
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<p>a</p><p>b</p>", "a b"},
		{"plain text", "plain text"},
		{"<div>x<script>if (a < b) {}</script>y</div>", "x y"},
		{"  <b>bold</b>\n\n\t<i>italic</i> ", "bold italic"},
		{"caf&eacute; &lt;tag&gt;", "café <tag>"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripMarkup(tt.in), tt.in)
	}
}
