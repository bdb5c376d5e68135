package vast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_ListInstances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/instances/", r.URL.Path)
		fmt.Fprint(w, `{"instances":[{"id":101,"actual_status":"running","label":"vastctl-demo"}]}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	instances, err := a.ListInstances(context.Background())

	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, int64(101), instances[0].ID)
	assert.Equal(t, "running", instances[0].ActualStatus)
}

func TestAPI_GetInstance_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"instances":[{"id":101}]}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	_, err := a.GetInstance(context.Background(), 999)

	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPI_CreateInstance(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/asks/555/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		fmt.Fprint(w, `{"success":true,"new_contract":7777}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	result, err := a.CreateInstance(context.Background(), 555, CreateRequest{
		Image:   "pytorch/pytorch:2.4.0-cuda12.4-cudnn9-runtime",
		DiskGB:  60,
		OnStart: "#!/bin/bash\necho hi\n",
		Label:   "vastctl-demo",
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(7777), result.NewContract)

	assert.Equal(t, "me", payload["client_id"])
	assert.Equal(t, "ssh", payload["runtype"])
	assert.Equal(t, float64(60), payload["disk"])
	assert.Equal(t, "vastctl-demo", payload["label"])
}

func TestAPI_StateChanges(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]any
	}
	var calls []call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := call{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			json.NewDecoder(r.Body).Decode(&c.body)
		}
		calls = append(calls, c)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	ctx := context.Background()

	require.NoError(t, a.StartInstance(ctx, 1))
	require.NoError(t, a.StopInstance(ctx, 1))
	require.NoError(t, a.DestroyInstance(ctx, 1))
	require.NoError(t, a.AttachSSHKey(ctx, 1, "ssh-ed25519 AAAA test@host"))

	require.Len(t, calls, 4)
	assert.Equal(t, call{http.MethodPut, "/instances/1/", map[string]any{"state": "running"}}, calls[0])
	assert.Equal(t, call{http.MethodPut, "/instances/1/", map[string]any{"state": "stopped"}}, calls[1])
	assert.Equal(t, call{http.MethodDelete, "/instances/1/", nil}, calls[2])
	assert.Equal(t, call{http.MethodPost, "/instances/1/ssh/", map[string]any{"ssh_key": "ssh-ed25519 AAAA test@host"}}, calls[3])
}

func TestAPI_SSHInfo(t *testing.T) {
	t.Run("prefers proxy endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"instances":[{"id":1,"ssh_host":"ssh4.vast.ai","ssh_port":12345,"public_ipaddr":"1.2.3.4","direct_port_start":40000}]}`)
		}))
		defer srv.Close()

		a := testAPI(t, srv)
		info, err := a.SSHInfo(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, &SSHInfo{Host: "ssh4.vast.ai", Port: 12345}, info)
	})

	t.Run("falls back to direct connection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"instances":[{"id":1,"public_ipaddr":"1.2.3.4","direct_port_start":40000}]}`)
		}))
		defer srv.Close()

		a := testAPI(t, srv)
		info, err := a.SSHInfo(context.Background(), 1)

		require.NoError(t, err)
		assert.Equal(t, &SSHInfo{Host: "1.2.3.4", Port: 40000}, info)
	})

	t.Run("errors when nothing available", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"instances":[{"id":1}]}`)
		}))
		defer srv.Close()

		a := testAPI(t, srv)
		_, err := a.SSHInfo(context.Background(), 1)

		require.Error(t, err)
	})
}

func TestAPI_WaitForRunning(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		status := "loading"
		if n >= 3 {
			status = "running"
		}
		fmt.Fprintf(w, `{"instances":[{"id":1,"actual_status":%q}]}`, status)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	inst, err := a.WaitForRunning(context.Background(), 1, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "running", inst.ActualStatus)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestAPI_WaitForRunning_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"instances":[{"id":1,"actual_status":"loading"}]}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	_, err := a.WaitForRunning(context.Background(), 1, 20*time.Millisecond)

	require.ErrorIs(t, err, ErrTimeout)
}

func TestAPI_WaitUntilStopped_GoneCountsAsStopped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"instances":[]}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	err := a.WaitUntilStopped(context.Background(), 1, time.Second)

	require.NoError(t, err)
}

func TestAPI_WaitUntilGone(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			fmt.Fprint(w, `{"instances":[{"id":1,"actual_status":"exited"}]}`)
			return
		}
		fmt.Fprint(w, `{"instances":[]}`)
	}))
	defer srv.Close()

	a := testAPI(t, srv)
	err := a.WaitUntilGone(context.Background(), 1, time.Second)

	require.NoError(t, err)
}
