package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSiteDir returns a served root containing index.html, app.js and
// sub/data.json, next to a secret.txt that sits outside it.
func newSiteDir(t *testing.T) string {
	t.Helper()
	parent := t.TempDir()
	root := filepath.Join(parent, "site")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "app.js"), []byte("console.log('hi');\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<h1>index</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "data.json"), []byte(`{"a":1}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(parent, "secret.txt"), []byte("top secret"), 0644))
	return root
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", h.Get("Access-Control-Allow-Headers"))
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestStaticHandler(t *testing.T) {
	root := newSiteDir(t)
	h := NewStaticHandler(root)

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"file", "/app.js", http.StatusOK, "console.log('hi');\n"},
		{"nested", "/sub/data.json", http.StatusOK, `{"a":1}`},
		{"index", "/", http.StatusOK, "<h1>index</h1>"},
		{"missing", "/nope.txt", http.StatusNotFound, ""},
		{"dir redirect", "/sub", http.StatusMovedPermanently, ""},
		{"index redirect", "/index.html", http.StatusMovedPermanently, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, w.Code)
			assertCORS(t, w.Header())
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestStaticHandlerContentType(t *testing.T) {
	h := NewStaticHandler(newSiteDir(t))
	w := serve(h, http.MethodGet, "/sub/data.json")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestStaticHandlerDirectoryListing(t *testing.T) {
	root := newSiteDir(t)
	require.NoError(t, os.Remove(filepath.Join(root, "index.html")))
	w := serve(NewStaticHandler(root), http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<a href="app.js">app.js</a>`)
	assertCORS(t, w.Header())
}

func TestStaticHandlerContainment(t *testing.T) {
	h := NewStaticHandler(newSiteDir(t))
	for _, target := range []string{
		"/../secret.txt",
		"/../../secret.txt",
		"/sub/../../secret.txt",
		"/%2e%2e/secret.txt",
		"/..%2fsecret.txt",
		"/../../etc/passwd",
	} {
		t.Run(target, func(t *testing.T) {
			w := serve(h, http.MethodGet, target)
			assert.NotEqual(t, http.StatusOK, w.Code)
			assert.NotContains(t, w.Body.String(), "top secret")
			assertCORS(t, w.Header())
		})
	}
}

func TestCORSOnOtherMethods(t *testing.T) {
	h := NewStaticHandler(newSiteDir(t))
	for _, m := range []string{http.MethodHead, http.MethodPost, http.MethodOptions} {
		assertCORS(t, serve(h, m, "/app.js").Header())
	}
}

func TestRequestLogRecordsStatus(t *testing.T) {
	var rec *statusRecorder
	h := withRequestLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec = w.(*statusRecorder)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	serve(h, http.MethodGet, "/")
	require.NotNil(t, rec)
	assert.Equal(t, http.StatusTeapot, rec.status)
}
