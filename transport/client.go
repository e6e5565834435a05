package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synnergy-labs/rollupnet/core"
)

// Client is the wallet side of the wire protocol: it dials the
// coordinator, sends AddConnection as its mandatory first frame, and
// dispatches server-originated messages to caller-supplied handlers.
type Client struct {
	conn *websocket.Conn

	mu sync.Mutex

	OnInclusionProof     func(core.TransactionProof)
	OnReceiveTransaction func(core.TransactionProof, core.BalanceProof)
}

// Dial connects to url and immediately announces pk via AddConnection.
func Dial(url string, pk core.PublicKey) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial: %w", err)
	}
	c := &Client{conn: conn}
	if err := c.send(NewAddConnection(pk)); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) send(env Envelope) error {
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// SendTransactionBatch submits batch to the coordinator's current round.
func (c *Client) SendTransactionBatch(batch core.TransactionBatch) error {
	return c.send(NewSendTransactionBatch(batch))
}

// SendTransactionBatchSignature returns a signature over an inclusion
// proof's root.
func (c *Client) SendTransactionBatchSignature(pk core.PublicKey, sig core.Signature) error {
	return c.send(NewSendTransactionBatchSignature(pk, sig))
}

// SendBatchToReceivers asks the coordinator to forward a committed
// transfer to its recipients.
func (c *Client) SendBatchToReceivers(proof core.TransactionProof, bp core.BalanceProof) error {
	return c.send(NewSendBatchToReceivers(proof, bp))
}

// Run reads frames until the connection drops, dispatching each to the
// matching handler. Call it from its own goroutine.
func (c *Client) Run() error {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := Decode(raw)
		if err != nil {
			continue
		}
		switch env.Tag {
		case TagSendTransactionInclusion:
			if c.OnInclusionProof != nil {
				c.OnInclusionProof(env.InclusionProof.Proof)
			}
		case TagReceiveTransaction:
			if c.OnReceiveTransaction != nil {
				c.OnReceiveTransaction(env.ReceiveTransaction.Proof, env.ReceiveTransaction.BalanceProof)
			}
		}
	}
}

// Close closes the underlying connection, giving the server up to the
// supplied deadline to observe the close frame.
func (c *Client) Close(deadline time.Duration) error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(deadline))
	c.mu.Unlock()
	return c.conn.Close()
}
