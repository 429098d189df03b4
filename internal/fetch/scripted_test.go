package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptedSession_CloseIsIdempotent(t *testing.T) {
	var cancels int
	s := &scriptedSession{cancel: func() { cancels++ }}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, cancels, "browser is torn down once")
}

func TestScriptedSession_FetchAfterClose(t *testing.T) {
	s := &scriptedSession{cancel: func() {}}
	require.NoError(t, s.Close())

	page, err := s.Fetch(context.Background(), "https://board.test/jobs")
	assert.Nil(t, page)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindNetwork, f.Kind)
	assert.Equal(t, "https://board.test/jobs", f.URL)
}

func TestBlockPatterns(t *testing.T) {
	patterns := blockPatterns(DefaultBlockedResources)
	require.Len(t, patterns, len(DefaultBlockedResources))
	for i, p := range patterns {
		assert.Equal(t, "*", p.URLPattern)
		assert.Equal(t, DefaultBlockedResources[i], p.ResourceType)
		assert.Equal(t, cdpfetch.RequestStageRequest, p.RequestStage)
	}
	assert.Empty(t, blockPatterns(nil))
}

func TestScriptedOptions_Defaults(t *testing.T) {
	s := NewScripted(ScriptedOptions{})
	assert.Equal(t, ModeScripted, s.Mode())
	assert.Equal(t, DefaultUserAgent, s.opts.UserAgent)
	assert.Equal(t, DefaultBlockedResources, s.opts.BlockedResources)
	assert.Positive(t, s.opts.PageTimeout)

	custom := NewScripted(ScriptedOptions{BlockedResources: []network.ResourceType{network.ResourceTypeImage}})
	assert.Len(t, custom.opts.BlockedResources, 1)
}

func TestCheckStatus(t *testing.T) {
	for _, code := range []int{200, 204, 299} {
		assert.NoError(t, checkStatus("https://x.test", code), code)
	}
	for _, code := range []int{199, 301, 404, 429, 503} {
		err := checkStatus("https://x.test", code)
		require.Error(t, err, code)
		assert.Equal(t, KindStatus, FailureKind(err), code)
	}
}

// chromePath finds a local Chrome or Chromium, honouring CHROME_PATH.
func chromePath() string {
	if p := os.Getenv("CHROME_PATH"); p != "" {
		return p
	}
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

func TestScripted_FetchWithBrowser(t *testing.T) {
	exe := chromePath()
	if exe == "" {
		t.Skip("no Chrome binary found")
	}

	var imageHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Board</title></head><body>
			<img src="/logo.png">
			<a class="job" href="/job/1">Backend Engineer</a>
		</body></html>`)
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		imageHits.Add(1)
		w.Header().Set("Content-Type", "image/png")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sess, err := NewScripted(ScriptedOptions{
		ExecPath:    exe,
		SettleDelay: 50 * time.Millisecond,
		PageTimeout: 30 * time.Second,
	}).Open(ctx)
	require.NoError(t, err)
	defer sess.Close()

	page, err := sess.Fetch(ctx, server.URL+"/jobs")
	require.NoError(t, err)
	assert.Equal(t, "Board", page.Title)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, 1, page.Doc.Find("a.job").Length())
	assert.Zero(t, imageHits.Load(), "images are blocked")

	_, err = sess.Fetch(ctx, server.URL+"/missing")
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, KindStatus, f.Kind)
	assert.Equal(t, http.StatusNotFound, f.StatusCode)
}
