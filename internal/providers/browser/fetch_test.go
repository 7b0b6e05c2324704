package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shop":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(shopHTML))
		case "/moved":
			http.Redirect(w, r, "/shop", http.StatusFound)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(5*time.Second, nil)
	ctx := context.Background()

	p, err := f.Fetch(ctx, srv.URL+"/moved")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, srv.URL+"/shop", p.URL())

	links, err := p.Links(ctx, []string{"#results"})
	require.NoError(t, err)
	require.NotEmpty(t, links)
	assert.Equal(t, srv.URL+"/p/1", links[0].URL)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.Error(t, err)
}
