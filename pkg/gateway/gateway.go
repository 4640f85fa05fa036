package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeolun/distcore/pkg/envelope"
	"github.com/aeolun/distcore/pkg/frame"
)

var (
	errorLog *log.Logger
	debugLog *log.Logger
)

func init() {
	errorLog = log.New(io.MultiWriter(os.Stderr), "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
}

// EnableDebugLogging routes this package's debug log to w. Debug output is
// discarded by default.
func EnableDebugLogging(w io.Writer) {
	debugLog = log.New(w, "DEBUG: ", log.LstdFlags)
}

// Config controls the gateway's listeners.
type Config struct {
	ListenAddr string
	HTTPPort   int
}

// Peer is one connected relay endpoint.
type Peer struct {
	conn *SafeConn
	id   string
}

// RemoteAddr returns the peer's network address.
func (p *Peer) RemoteAddr() string {
	return p.conn.RemoteAddr().String()
}

// Server relays envelope.Dumps frame sequences between connected peers over
// websocket. Payloads pass through opaque; the relay never deserializes.
type Server struct {
	cfg Config

	upgrader websocket.Upgrader
	metrics  *Metrics

	mu       sync.Mutex
	peers    map[*Peer]struct{}
	shutdown chan struct{}
	wg       sync.WaitGroup

	httpServer *http.Server
}

// New creates a Server ready to Start.
func New(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		metrics:  NewMetrics(),
		peers:    map[*Peer]struct{}{},
		shutdown: make(chan struct{}),
	}
}

// Start begins serving the peer websocket endpoint and, if HTTPPort is
// nonzero, a separate internal-only /metrics and /health listener.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handlePeer)

	if s.cfg.HTTPPort > 0 {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsMux.HandleFunc("/health", s.healthHandler)
		go func() {
			addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
			log.Printf("Metrics server listening on %s (/metrics, /health)", addr)
			if err := http.ListenAndServe(addr, metricsMux); err != nil {
				errorLog.Printf("metrics server error: %v", err)
			}
		}()
	}

	s.httpServer = &http.Server{Addr: s.cfg.ListenAddr, Handler: mux}
	log.Printf("Gateway listening on %s (/ws)", s.cfg.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway: listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return nil
}

// Stop gracefully closes every connected peer, waits for their relay loops
// to drain, then shuts down the HTTP listener.
func (s *Server) Stop() error {
	log.Println("Gateway shutdown initiated...")
	close(s.shutdown)

	s.mu.Lock()
	for p := range s.peers {
		p.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	log.Println("Gateway shutdown complete")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.peers)
	s.mu.Unlock()
	fmt.Fprintf(w, "ok peers=%d\n", n)
}

func (s *Server) handlePeer(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		errorLog.Printf("websocket upgrade failed: %v", err)
		return
	}
	peer := &Peer{conn: NewSafeConn(conn), id: r.RemoteAddr}

	s.mu.Lock()
	s.peers[peer] = struct{}{}
	s.mu.Unlock()
	s.metrics.PeersConnected.Inc()
	debugLog.Printf("peer connected: %s", peer.id)

	s.wg.Add(1)
	go s.relayLoop(peer)
}

// relayLoop reads WireMessages from peer and fans TypeData messages out to
// every other connected peer. Broadcast is the only traffic policy.
func (s *Server) relayLoop(peer *Peer) {
	defer s.wg.Done()
	defer s.disconnect(peer)

	for {
		msg, err := peer.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.shutdown:
			default:
				debugLog.Printf("peer %s read error: %v", peer.id, err)
			}
			return
		}

		switch msg.Type {
		case TypePing:
			if err := peer.conn.SendMessage(WireMessage{Type: TypePong}); err != nil {
				s.metrics.RelayErrors.Inc()
				return
			}
		case TypeData:
			s.metrics.MessagesRelayed.Inc()
			s.metrics.FramesRelayed.Add(float64(len(msg.Frames)))
			for _, f := range msg.Frames {
				s.metrics.BytesRelayed.Add(float64(len(f)))
			}
			s.broadcast(peer, *msg)
		}
	}
}

func (s *Server) broadcast(from *Peer, msg WireMessage) {
	s.mu.Lock()
	recipients := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		if p != from {
			recipients = append(recipients, p)
		}
	}
	s.mu.Unlock()

	for _, p := range recipients {
		if err := p.conn.SendMessage(msg); err != nil {
			s.metrics.RelayErrors.Inc()
			debugLog.Printf("relay to %s failed: %v", p.id, err)
		}
	}
}

func (s *Server) disconnect(peer *Peer) {
	s.mu.Lock()
	delete(s.peers, peer)
	s.mu.Unlock()
	s.metrics.PeersConnected.Dec()
	peer.conn.Close()
	debugLog.Printf("peer disconnected: %s", peer.id)
}

// Dial connects to a gateway's /ws endpoint as a peer.
func Dial(addr string) (*Peer, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", addr, err)
	}
	return &Peer{conn: NewSafeConn(conn), id: addr}, nil
}

// Send dumps v through cfg and ships the resulting frame sequence as one
// TypeData WireMessage.
func (p *Peer) Send(v any, cfg envelope.Config) error {
	frames, err := envelope.Dumps(v, cfg)
	if err != nil {
		return err
	}
	raw := make([][]byte, len(frames))
	for i, f := range frames {
		raw[i] = f
	}
	return p.conn.SendMessage(WireMessage{Type: TypeData, Frames: raw})
}

// Receive reads the next TypeData message and reconstructs it via
// envelope.Loads. It blocks until a message arrives or the connection closes.
func (p *Peer) Receive(deserialize bool, cfg envelope.Config) (any, error) {
	for {
		msg, err := p.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msg.Type != TypeData {
			continue
		}
		frames := make([]frame.Frame, len(msg.Frames))
		for i, f := range msg.Frames {
			frames[i] = f
		}
		return envelope.Loads(frames, deserialize, cfg)
	}
}

// Close closes the peer connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}
