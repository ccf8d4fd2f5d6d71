package httputil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	for name, cfg := range map[string]*ClientConfig{
		"default": nil,
		"twitter": TwitterClientConfig(),
		"google":  GoogleClientConfig(),
		"dav":     DAVClientConfig(),
	} {
		t.Run(name, func(t *testing.T) {
			want := cfg
			if want == nil {
				want = DefaultClientConfig()
			}

			c := NewClient(cfg)
			assert.Equal(t, want.ResponseTimeout, c.Timeout)

			tr, ok := c.Transport.(*http.Transport)
			require.True(t, ok)
			assert.Equal(t, want.MaxConnsPerHost, tr.MaxConnsPerHost)
			assert.Equal(t, want.MaxIdleConnsPerHost, tr.MaxIdleConnsPerHost)
		})
	}
}
