package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/recipe-cli/internal/config"
	"github.com/sells-group/recipe-cli/internal/quota"
)

func TestIdentify(t *testing.T) {
	t.Parallel()
	s := New(Options{
		Config: config.ServerConfig{CookieSecure: true},
		Auth:   HeaderAuthenticator{Header: "X-User-Id"},
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   quota.Identity
		minted bool
	}{
		{name: "authenticated", header: "u-1", cookie: "tok", want: quota.Identity{ID: "u-1", Authenticated: true}},
		{name: "anonymous cookie", cookie: "tok", want: quota.Identity{ID: "tok"}},
		{name: "no cookie", minted: true},
		{name: "oversized cookie", cookie: strings.Repeat("x", 200), minted: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-User-Id", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()
			got := s.identify(rr, req)

			c := tokenCookie(rr)
			if !tt.minted {
				assert.Equal(t, tt.want, got)
				assert.Nil(t, c)
				return
			}
			require.NotNil(t, c)
			assert.False(t, got.Authenticated)
			assert.Equal(t, c.Value, got.ID)
			assert.True(t, c.Secure)
			assert.True(t, c.HttpOnly)
			assert.Equal(t, "/", c.Path)
		})
	}
}

func TestHeaderAuthenticator_Unconfigured(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "u-1")

	_, ok := HeaderAuthenticator{}.UserID(req)
	assert.False(t, ok)
}
