package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

type payloadHandler []byte

func (p payloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write(p)
}

func TestBandwidthUnlimitedIsPassthrough(t *testing.T) {
	h := &payloadHandler{}
	if got := NewBandwidthManager(0).Wrap(h); got != http.Handler(h) {
		t.Error("Wrap with no cap should return the handler unchanged")
	}
}

func TestBandwidthLimitedDeliversWholeBody(t *testing.T) {
	// 3 chunks at a cap far above the payload, so the test stays fast while
	// still routing every byte through the limiter.
	payload := bytes.Repeat([]byte("x"), 3*chunkSize+17)
	bm := NewBandwidthManager(64 << 20)
	h := bm.Wrap(payloadHandler(payload))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/big.bin", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	h.ServeHTTP(w, req)

	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Errorf("body length = %d, want %d", w.Body.Len(), len(payload))
	}
	if bm.Peers() != 0 {
		t.Errorf("Peers after request = %d, want 0", bm.Peers())
	}
}

func TestBandwidthSharesPerIP(t *testing.T) {
	bm := NewBandwidthManager(1000)
	a1 := bm.acquire("10.0.0.1")
	a2 := bm.acquire("10.0.0.1")
	b := bm.acquire("10.0.0.2")

	if a1 != a2 {
		t.Error("connections from one IP should share a limiter")
	}
	if got := float64(b.Limit()); got != 500 {
		t.Errorf("per-IP share = %v, want 500", got)
	}

	bm.release("10.0.0.2")
	if got := float64(a1.Limit()); got != 1000 {
		t.Errorf("share after peer left = %v, want 1000", got)
	}
	bm.release("10.0.0.1")
	bm.release("10.0.0.1")
	if bm.Peers() != 0 {
		t.Errorf("Peers = %d, want 0", bm.Peers())
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:41000"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "weird"
	if got := clientIP(req); got != "weird" {
		t.Errorf("clientIP = %q, want raw RemoteAddr", got)
	}
}
