package util

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func proxyFor(t *testing.T, fn func(*http.Request) (*url.URL, error), rawURL string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	u, err := fn(req)
	require.NoError(t, err)
	if u == nil {
		return ""
	}
	return u.String()
}

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "http://secure-proxy:3129", "")

	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "http://ca.gov/rules"))
	assert.Equal(t, "http://secure-proxy:3129", proxyFor(t, fn, "https://ca.gov/rules"))
}

func TestNewProxyFunc_NoProxy(t *testing.T) {
	fn := NewProxyFunc("http://proxy:3128", "", "internal.example, .city.gov")

	assert.Equal(t, "", proxyFor(t, fn, "http://internal.example/x"))
	assert.Equal(t, "", proxyFor(t, fn, "http://www.city.gov/x"))
	assert.Equal(t, "http://proxy:3128", proxyFor(t, fn, "https://county.gov/x"))
}

func TestSplitNoProxy(t *testing.T) {
	assert.Equal(t, []string{"a.com", "b.org"}, splitNoProxy(" a.com, .B.org ,,"))
	assert.Nil(t, splitNoProxy(""))
}
