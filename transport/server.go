package transport

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-labs/rollupnet/core"
)

var serverLog = newDiscardLogger()

// SetServerLogger redirects the coordinator's log output.
func SetServerLogger(l *logrus.Logger) {
	if l != nil {
		serverLog = l
	}
}

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection is the coordinator's record of one client, carrying a sink
// back to that client's writer goroutine. id is assigned per TCP-level
// connection, before AddConnection is known, so log lines from a
// not-yet-registered connection are still correlatable.
type connection struct {
	id   string
	pk   core.PublicKey
	send chan Envelope
}

// ServerState is the coordinator's per-process state: the connection
// registry, the set of senders who submitted a batch this round, the
// current Aggregator, and the settlement view.
type ServerState struct {
	mu sync.Mutex

	connections      map[core.PubKeyID]*connection
	connectionsWithTx map[core.PubKeyID]bool

	aggregator *core.Aggregator
	view       core.SettlementView

	tCollect time.Duration
	tSign    time.Duration

	cancel context.CancelFunc
}

// NewServerState constructs a coordinator bound to view, with round timers
// tCollect and tSign.
func NewServerState(view core.SettlementView, tCollect, tSign time.Duration) *ServerState {
	return &ServerState{
		connections:       make(map[core.PubKeyID]*connection),
		connectionsWithTx: make(map[core.PubKeyID]bool),
		aggregator:        core.NewAggregator(),
		view:              view,
		tCollect:          tCollect,
		tSign:             tSign,
	}
}

// Start launches the round-producing background loop. Calling Start twice
// has no effect.
func (s *ServerState) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.roundLoop(ctx)
	serverLog.Info("coordinator round loop started")
}

// Stop cancels the round loop.
func (s *ServerState) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *ServerState) roundLoop(ctx context.Context) {
	ticker := time.NewTicker(s.tCollect)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRound(ctx)
		}
	}
}

// runRound executes one instance of the round-production loop.
func (s *ServerState) runRound(ctx context.Context) {
	s.mu.Lock()
	agg := s.aggregator
	s.mu.Unlock()

	if err := agg.StartCollectingSignatures(); err != nil {
		serverLog.WithError(err).Debug("round skipped")
		return
	}

	s.mu.Lock()
	senders := make([]core.PubKeyID, 0, len(s.connectionsWithTx))
	for id := range s.connectionsWithTx {
		senders = append(senders, id)
	}
	s.mu.Unlock()

	for _, id := range senders {
		s.mu.Lock()
		conn, ok := s.connections[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		proof, err := agg.GenerateProofForPubkey(conn.pk)
		if err != nil {
			serverLog.WithError(err).Warn("failed to generate inclusion proof")
			continue
		}
		s.deliver(conn, NewSendTransactionInclusionProof(proof))
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.tSign):
	}

	block, err := agg.Finalise()
	if err != nil {
		serverLog.WithError(err).Warn("round finalise failed")
		s.swapAggregator()
		return
	}
	if err := s.view.AddTransferBlock(ctx, block); err != nil {
		serverLog.WithError(err).Error("failed to append transfer block")
	}
	s.swapAggregator()
}

// swapAggregator clears connectionsWithTx and installs a fresh Aggregator
// for the next round (Aggregator is single-use; see core/aggregator.go).
func (s *ServerState) swapAggregator() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionsWithTx = make(map[core.PubKeyID]bool)
	s.aggregator = core.NewAggregator()
}

func (s *ServerState) currentAggregator() *core.Aggregator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregator
}

// deliver enqueues env on conn's sink, dropping silently if the buffer is
// full (a slow client is the client's problem, not the coordinator's).
func (s *ServerState) deliver(conn *connection, env Envelope) {
	select {
	case conn.send <- env:
	default:
		serverLog.Warn("dropping message to slow client")
	}
}

// HandleWebSocket upgrades an HTTP request to a websocket connection and
// runs that connection's reader/writer pair until it drops.
func (s *ServerState) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLog.WithError(err).Warn("websocket upgrade failed")
		return
	}
	s.handleConnection(conn)
}

func (s *ServerState) handleConnection(ws *websocket.Conn) {
	defer ws.Close()

	c := &connection{id: uuid.New().String(), send: make(chan Envelope, 32)}
	registered := false

	done := make(chan struct{})
	go s.writePump(ws, c, done)
	defer close(done)

	serverLog.WithField("connection_id", c.id).Debug("connection accepted")

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			break
		}
		env, err := Decode(raw)
		if err != nil {
			serverLog.WithError(err).Debug("bad message")
			break
		}

		if !registered {
			if env.Tag != TagAddConnection {
				serverLog.Warn("protocol violation: first message was not AddConnection")
				break
			}
			c.pk = env.AddConnection.PublicKey
			s.mu.Lock()
			s.connections[c.pk.ID()] = c
			s.mu.Unlock()
			registered = true
			continue
		}

		s.dispatch(env, c)
	}

	if registered {
		s.mu.Lock()
		delete(s.connections, c.pk.ID())
		s.mu.Unlock()
	}
}

func (s *ServerState) dispatch(env Envelope, c *connection) {
	switch env.Tag {
	case TagSendTransactionBatch:
		agg := s.currentAggregator()
		if _, err := agg.AddBatch(env.SendTransactionBatch.Batch); err != nil {
			serverLog.WithError(err).Debug("add_batch rejected")
			return
		}
		s.mu.Lock()
		s.connectionsWithTx[c.pk.ID()] = true
		s.mu.Unlock()

	case TagSendTransactionBatchSig:
		agg := s.currentAggregator()
		if err := agg.AddSignature(env.SendTransactionBatchSig.PublicKey, env.SendTransactionBatchSig.Signature); err != nil {
			serverLog.WithError(err).Debug("add_signature rejected")
		}

	case TagSendBatchToReceivers:
		s.fanOutToReceivers(env.SendBatchToReceivers.Proof, env.SendBatchToReceivers.BalanceProof)

	default:
		serverLog.WithField("tag", env.Tag).Warn("unexpected client message")
	}
}

// fanOutToReceivers sends a ReceiveTransaction message to every recipient
// of proof's batch that currently holds a connection; disconnected
// recipients are silently skipped.
func (s *ServerState) fanOutToReceivers(proof core.TransactionProof, bp core.BalanceProof) {
	seen := make(map[core.PubKeyID]bool)
	for _, tx := range proof.Batch.Transactions {
		id := tx.To.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		s.mu.Lock()
		conn, ok := s.connections[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		s.deliver(conn, NewReceiveTransaction(proof, bp))
	}
}

func (s *ServerState) writePump(ws *websocket.Conn, c *connection, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case env := <-c.send:
			raw, err := Encode(env)
			if err != nil {
				serverLog.WithError(err).Error("failed to encode outgoing message")
				continue
			}
			if err := ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		}
	}
}
