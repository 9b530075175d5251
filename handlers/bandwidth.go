package handlers

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// chunkSize is the most bytes passed through the limiter in one Write.
const chunkSize = 32 * 1024

// BandwidthManager caps the total bytes per second written to clients.
// The cap is split evenly between distinct client IPs, so opening several
// connections from one address does not earn a larger share.
type BandwidthManager struct {
	limitBps float64 // 0 = unlimited

	mu    sync.Mutex
	peers map[string]*peer
}

type peer struct {
	limiter *rate.Limiter
	streams int
}

// NewBandwidthManager creates a manager with the given total cap in bytes
// per second. Pass 0 to disable limiting.
func NewBandwidthManager(bytesPerSec float64) *BandwidthManager {
	return &BandwidthManager{
		limitBps: bytesPerSec,
		peers:    make(map[string]*peer),
	}
}

// Wrap returns h with its response writes throttled. With no cap set, h is
// returned unchanged.
func (bm *BandwidthManager) Wrap(h http.Handler) http.Handler {
	if bm == nil || bm.limitBps == 0 {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		limiter := bm.acquire(ip)
		defer bm.release(ip)

		h.ServeHTTP(&throttledWriter{ResponseWriter: w, ctx: r.Context(), limiter: limiter}, r)
	})
}

// Peers reports how many client IPs currently hold a share.
func (bm *BandwidthManager) Peers() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return len(bm.peers)
}

func (bm *BandwidthManager) acquire(ip string) *rate.Limiter {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	p, ok := bm.peers[ip]
	if !ok {
		p = &peer{limiter: rate.NewLimiter(rate.Limit(bm.limitBps), chunkSize)}
		bm.peers[ip] = p
	}
	p.streams++
	bm.rebalanceLocked()
	return p.limiter
}

func (bm *BandwidthManager) release(ip string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	p, ok := bm.peers[ip]
	if !ok {
		return
	}
	if p.streams--; p.streams <= 0 {
		delete(bm.peers, ip)
	}
	bm.rebalanceLocked()
}

// rebalanceLocked gives every active IP an equal share. bm.mu must be held.
func (bm *BandwidthManager) rebalanceLocked() {
	if len(bm.peers) == 0 {
		return
	}
	share := bm.limitBps / float64(len(bm.peers))
	for _, p := range bm.peers {
		p.limiter.SetLimit(rate.Limit(share))
	}
	log.Printf("bandwidth       peers=%-3d  share=%s", len(bm.peers), FormatBits(share))
}

// FormatBits formats bytes/sec as bits/sec, the unit the cap is configured in.
func FormatBits(bytesPerSec float64) string {
	bps := bytesPerSec * 8
	switch {
	case bps >= 1e9:
		return fmt.Sprintf("%.2f Gbps", bps/1e9)
	case bps >= 1e6:
		return fmt.Sprintf("%.2f Mbps", bps/1e6)
	case bps >= 1e3:
		return fmt.Sprintf("%.2f Kbps", bps/1e3)
	default:
		return fmt.Sprintf("%.0f bps", bps)
	}
}

// throttledWriter passes writes through a token bucket in chunkSize pieces
// and stops as soon as the request context is cancelled.
type throttledWriter struct {
	http.ResponseWriter
	ctx     context.Context
	limiter *rate.Limiter
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		n := min(len(p), chunkSize)
		if err := tw.limiter.WaitN(tw.ctx, n); err != nil {
			return total, err
		}
		written, err := tw.ResponseWriter.Write(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

// Unwrap lets http.ResponseController reach the underlying ResponseWriter.
func (tw *throttledWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

// clientIP extracts the remote IP from the request, stripping the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
