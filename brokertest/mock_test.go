// Copyright 2024 The httpbroker Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package brokertest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/nilsbloom/httpbroker/broker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockConnectionBroker_ReusesConnectionForSameOrigin(t *testing.T) {
	m := NewMockConnectionBroker(func(r *http.Request) *http.Response {
		return NewResponse(http.StatusOK, nil)
	})

	u, err := url.Parse("http://example.com/a")
	require.NoError(t, err)

	c1, viaProxy, err := m.GetConnection(u, false)
	require.NoError(t, err)
	assert.False(t, viaProxy)

	u2, err := url.Parse("http://example.com/b")
	require.NoError(t, err)
	c2, _, err := m.GetConnection(u2, false)
	require.NoError(t, err)

	assert.Same(t, c1, c2, "same origin reuses the same mock connection")
}

func TestMockConnectionBroker_PipelinedRoundTrip(t *testing.T) {
	const n = 5
	m := NewMockConnectionBroker(func(r *http.Request) *http.Response {
		body, _ := io.ReadAll(r.Body)
		return NewResponse(http.StatusOK, append([]byte("echo:"), body...))
	})

	u, err := url.Parse("http://example.com/")
	require.NoError(t, err)
	conn, _, err := m.GetConnection(u, false)
	require.NoError(t, err)

	reqs := make([]broker.ClientRequest, n)
	for i := 0; i < n; i++ {
		h, err := broker.NewHeaders(context.Background(), http.MethodPost, u, fmt.Sprintf("payload-%d", i))
		require.NoError(t, err)
		reqs[i], err = conn.Request(h)
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		resp, err := reqs[i].Response()
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("echo:payload-%d", i), string(body))
		require.NoError(t, reqs[i].Finish())
	}
}

func TestMockConnectionBroker_CloseConnectionsStopsReuse(t *testing.T) {
	m := NewMockConnectionBroker(func(r *http.Request) *http.Response {
		return NewResponse(http.StatusOK, nil)
	})
	u, err := url.Parse("http://example.com/")
	require.NoError(t, err)

	c1, _, err := m.GetConnection(u, false)
	require.NoError(t, err)

	m.CloseConnections()

	c2, _, err := m.GetConnection(u, false)
	require.NoError(t, err)
	assert.NotSame(t, c1, c2, "a closed entry is not reused")
}
