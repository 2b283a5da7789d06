// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/cardiostat/pkg/acquisition"
	"github.com/Thermoquad/cardiostat/pkg/config"
	"github.com/Thermoquad/cardiostat/pkg/telemetry"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newBoardServer serves one WebSocket client, sends frames and closes
func newBoardServer(t *testing.T, user, pass string, frames ...[]byte) (*httptest.Server, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, p, ok := r.BasicAuth(); user != "" && (!ok || u != user || p != pass) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Text messages are not telemetry and must be skipped
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.BinaryMessage, f)
		}
		<-release
	}))
	t.Cleanup(srv.Close)
	return srv, release
}

func wsURLFor(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketConnection_ReadsBinaryMessages(t *testing.T) {
	srv, release := newBoardServer(t, "", "", []byte{1, 2, 3}, []byte{4})
	conn, err := OpenWebSocketConnection(wsURLFor(srv), "", "", false, 50*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 2)
	var got []byte
	deadline := time.Now().Add(5 * time.Second)
	for len(got) < 4 && time.Now().Before(deadline) {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}
	require.Equal(t, []byte{1, 2, 3, 4}, got)

	// No data: the read times out without error
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)

	close(release)
	for err == nil && time.Now().Before(deadline) {
		_, err = conn.Read(buf)
	}
	require.ErrorIs(t, err, ErrConnectionClosed)
	_, err = conn.Read(buf)
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestWebSocketConnection_BasicAuth(t *testing.T) {
	srv, release := newBoardServer(t, "bench", "secret")
	defer close(release)

	_, err := OpenWebSocketConnection(wsURLFor(srv), "bench", "wrong", false, time.Second)
	require.Error(t, err)
	require.Contains(t, err.Error(), "HTTP 401")

	conn, err := OpenWebSocketConnection(wsURLFor(srv), "bench", "secret", false, time.Second)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestOpenWebSocketConnection_BadScheme(t *testing.T) {
	_, err := OpenWebSocketConnection("http://example.com", "", "", false, time.Second)
	require.ErrorContains(t, err, "unsupported URL scheme")
}

func TestOpenConnection_RequiresTarget(t *testing.T) {
	_, _, err := OpenConnection(config.SerialConfig{})
	require.ErrorContains(t, err, "either --port or --url")
}

func TestWebSocketConnection_FeedsLoop(t *testing.T) {
	frame, err := telemetry.NewEncoder().EncodeFrame([telemetry.NumChannels]uint16{118, 135, 123})
	require.NoError(t, err)
	srv, release := newBoardServer(t, "", "", frame[:3], frame[3:])

	conn, err := OpenWebSocketConnection(wsURLFor(srv), "", "", false, 10*time.Millisecond)
	require.NoError(t, err)
	defer conn.Close()

	sink := acquisition.NewChannelSink(8)
	loop := acquisition.New(acquisition.NewReaderSource(conn, 16),
		acquisition.WithSampleSink(sink),
		acquisition.WithPollInterval(0),
	)
	require.NoError(t, loop.Start())

	for ch := uint8(0); ch < telemetry.NumChannels; ch++ {
		select {
		case s := <-sink.Samples():
			require.Equal(t, ch, s.Channel)
			require.Equal(t, 0.0, s.Value)
		case <-time.After(5 * time.Second):
			t.Fatal("sample not received")
		}
	}

	close(release)
	select {
	case <-loop.Done():
		require.ErrorIs(t, loop.Err(), acquisition.ErrDisconnected)
		require.ErrorIs(t, loop.Err(), ErrConnectionClosed)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not observe the closed link")
	}
}
