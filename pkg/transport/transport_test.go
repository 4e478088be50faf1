package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
)

func TestSignalingStartsWithOffer(t *testing.T) {
	srv := httptest.NewServer(NewServer(Config{}, Handlers{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// The offer and trickled candidates race onto the socket; scan until
	// the offer shows up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := ws.SetReadDeadline(deadline); err != nil {
			t.Fatalf("deadline: %v", err)
		}
		_, raw, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("no offer before deadline: %v", err)
		}

		var msg signalMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad signal %q: %v", raw, err)
		}
		if msg.Type != "offer" {
			continue
		}
		// The offer must carry the command data channel.
		if !strings.Contains(msg.SDP, "application") {
			t.Errorf("offer sdp has no data channel section:\n%s", msg.SDP)
		}
		return
	}
}

func TestDisconnectFiresWithoutConnect(t *testing.T) {
	disconnected := make(chan string, 1)
	srv := httptest.NewServer(NewServer(Config{}, Handlers{
		OnDisconnect: func(id string) { disconnected <- id },
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws.Close()

	select {
	case id := <-disconnected:
		if id == "" {
			t.Error("disconnect with empty id")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}
}

func TestSendBeforeChannelOpens(t *testing.T) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("pc: %v", err)
	}
	defer pc.Close()

	p := newPeer("p1", pc, nil)
	if err := p.Send([]byte("{}")); err == nil {
		t.Error("Send should fail before the data channel opens")
	}
}

func TestDetachUnknownTrackIsNoop(t *testing.T) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("pc: %v", err)
	}
	defer pc.Close()

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "test",
	)
	if err != nil {
		t.Fatalf("track: %v", err)
	}

	p := newPeer("p1", pc, nil)
	if err := p.DetachTrack(track); err != nil {
		t.Errorf("detach of unattached track: %v", err)
	}
}

func TestRemoteIP(t *testing.T) {
	r := &http.Request{RemoteAddr: "10.1.2.3:51234"}
	if got := remoteIP(r); got != "10.1.2.3" {
		t.Errorf("remoteIP = %q, want 10.1.2.3", got)
	}
}
