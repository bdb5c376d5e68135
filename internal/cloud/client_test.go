package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, enabled bool, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv(TokenEnvVar, "test-token")
	return NewClient(ClientOptions{
		BaseURL: srv.URL,
		Enabled: enabled,
		Tokens:  NewTokenStore(""),
	})
}

func TestClient_VerifyToken(t *testing.T) {
	t.Run("flat payload", func(t *testing.T) {
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/auth/cli-tokens/verify", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			w.Write([]byte(`{"email":"u@example.com","name":"U"}`))
		})

		info, err := c.VerifyToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "u@example.com", info.Email)
		assert.Equal(t, "U", info.Name)
	})

	t.Run("nested user payload", func(t *testing.T) {
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user":{"email":"n@example.com","organization":"acme"}}`))
		})

		info, err := c.VerifyToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "n@example.com", info.Email)
		assert.Equal(t, "acme", info.Organization)
	})

	t.Run("invalid token", func(t *testing.T) {
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid token"}`))
		})

		_, err := c.VerifyToken(context.Background())
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		assert.Equal(t, "invalid token", apiErr.Message)
	})
}

func TestClient_PushSnapshot(t *testing.T) {
	t.Run("posts snapshot", func(t *testing.T) {
		var gotPath string
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusAccepted)
		})

		err := c.PushSnapshot(context.Background(), BuildSnapshot("id-1", nil))
		require.NoError(t, err)
		assert.Equal(t, "/v1/cli/snapshots", gotPath)
	})

	t.Run("disabled client refuses", func(t *testing.T) {
		called := false
		c := testClient(t, false, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		err := c.PushSnapshot(context.Background(), Snapshot{})
		assert.ErrorIs(t, err, ErrDisabled)
		assert.False(t, called)
	})
}

func TestClient_NotLoggedIn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a token")
	}))
	defer srv.Close()

	t.Setenv(TokenEnvVar, "")
	c := NewClient(ClientOptions{
		BaseURL: srv.URL,
		Enabled: true,
		Tokens:  NewTokenStore("/nonexistent/token"),
	})

	_, err := c.VerifyToken(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestClient_FetchProfiles(t *testing.T) {
	t.Run("wrapped list", func(t *testing.T) {
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/profiles", r.URL.Path)
			w.Write([]byte(`{"profiles":[{"slug":"llm-finetune","description":"LoRA stack","image":"pytorch/pytorch:2.4.0-cuda12.4-cudnn9-runtime"}]}`))
		})

		profiles, err := c.FetchProfiles(context.Background())
		require.NoError(t, err)
		require.Contains(t, profiles, "llm-finetune")
		assert.Equal(t, "LoRA stack", profiles["llm-finetune"].Description)
	})

	t.Run("bare list keyed by name", func(t *testing.T) {
		c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"name":"diffusion","description":"SD stack"}]`))
		})

		profiles, err := c.FetchProfiles(context.Background())
		require.NoError(t, err)
		require.Contains(t, profiles, "diffusion")
	})
}

func TestClient_GetProfile(t *testing.T) {
	c := testClient(t, true, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/profiles/llm-finetune", r.URL.Path)
		w.Write([]byte(`{"slug":"llm-finetune","image":"custom/image:1"}`))
	})

	p, err := c.GetProfile(context.Background(), "llm-finetune")
	require.NoError(t, err)
	assert.Equal(t, "custom/image:1", p.Image)
}
