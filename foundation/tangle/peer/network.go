package peer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adamwoolhether/tangle/foundation/crypto"
)

// MessageKind tags every envelope on the wire with the sync message
// type it carries, playing the role of the generic parameter in the
// collaborator interface's send_object<T>/add_data_listener<T>.
type MessageKind uint8

// EventHandler narrates network-level activity; it is never required
// to be set.
type EventHandler func(v string, args ...any)

// Listener handles one decoded message payload from a peer.
type Listener func(from uuid.UUID, payload []byte)

// compressionThreshold: envelopes at or above this size are gzipped,
// matching §6.4's "larger ones are additionally gzipped."
const compressionThreshold = 1024

type envelope struct {
	kind       MessageKind
	compressed bool
	payload    []byte
}

func encodeEnvelope(kind MessageKind, payload []byte) ([]byte, error) {
	compressed := false
	body := payload

	if len(payload) >= compressionThreshold {
		gz, err := crypto.Gzip(payload)
		if err != nil {
			return nil, err
		}
		body = gz
		compressed = true
	}

	out := make([]byte, 2+len(body))
	out[0] = byte(kind)
	if compressed {
		out[1] = 1
	}
	copy(out[2:], body)

	return out, nil
}

func decodeEnvelope(raw []byte) (envelope, error) {
	if len(raw) < 2 {
		return envelope{}, fmt.Errorf("peer: envelope too short (%d bytes)", len(raw))
	}

	env := envelope{kind: MessageKind(raw[0]), compressed: raw[1] == 1}

	if env.compressed {
		payload, err := crypto.Gunzip(raw[2:])
		if err != nil {
			return envelope{}, fmt.Errorf("peer: gunzipping envelope: %w", err)
		}
		env.payload = payload
	} else {
		env.payload = raw[2:]
	}

	return env, nil
}

type conn struct {
	id   uuid.UUID
	ws   *websocket.Conn
	outM sync.Mutex
}

func (c *conn) send(raw []byte) error {
	c.outM.Lock()
	defer c.outM.Unlock()

	return c.ws.WriteMessage(websocket.BinaryMessage, raw)
}

// Network is a typed publish/subscribe mesh over a set of
// websocket-connected peers: every sent message is tagged with a
// MessageKind and fanned out to the listeners registered for it,
// generalizing the abstract peer-network collaborator of §6.2 beyond
// a single REST-polling host.
type Network struct {
	self uuid.UUID

	mu    sync.RWMutex
	conns map[uuid.UUID]*conn

	listenersMu sync.RWMutex
	listeners   map[MessageKind][]Listener

	connectListenersMu  sync.RWMutex
	connectListeners    []func(uuid.UUID)
	disconnectListeners []func(uuid.UUID)

	upgrader websocket.Upgrader
	server   *http.Server
	addr     string

	evHandler EventHandler
}

// NewNetwork constructs a Network identified by self.
func NewNetwork(self uuid.UUID, evHandler EventHandler) *Network {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	return &Network{
		self:      self,
		conns:     make(map[uuid.UUID]*conn),
		listeners: make(map[MessageKind][]Listener),
		upgrader:  websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		evHandler: ev,
	}
}

// Self returns this network's own peer id.
func (n *Network) Self() uuid.UUID {
	return n.self
}

// Addr returns the address Awake actually bound to, including the
// OS-assigned port when Awake was called with a ":0" address. It is
// empty until Awake succeeds.
func (n *Network) Addr() string {
	return n.addr
}

// AddDataListener registers a handler for every message of the given
// kind, including ones this process sends to itself.
func (n *Network) AddDataListener(kind MessageKind, l Listener) {
	n.listenersMu.Lock()
	defer n.listenersMu.Unlock()

	n.listeners[kind] = append(n.listeners[kind], l)
}

// AddConnectionListener registers a callback invoked whenever a new
// peer completes its handshake.
func (n *Network) AddConnectionListener(f func(uuid.UUID)) {
	n.connectListenersMu.Lock()
	defer n.connectListenersMu.Unlock()

	n.connectListeners = append(n.connectListeners, f)
}

// AddDisconnectionListener registers a callback invoked whenever a
// peer's connection drops.
func (n *Network) AddDisconnectionListener(f func(uuid.UUID)) {
	n.connectListenersMu.Lock()
	defer n.connectListenersMu.Unlock()

	n.disconnectListeners = append(n.disconnectListeners, f)
}

// Awake starts listening for inbound peer connections on addr,
// accepting the handshake-probe-style bootstrap this is meant to
// replace with a persistent websocket mesh.
func (n *Network) Awake(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/peer", n.handleUpgrade)

	n.server = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("peer: listening on %s: %w", addr, err)
	}
	n.addr = ln.Addr().String()

	go func() {
		if err := n.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.evHandler("peer: serve: %s", err)
		}
	}()

	return nil
}

func (n *Network) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.evHandler("peer: upgrade: %s", err)
		return
	}

	id := uuid.New()
	n.adopt(id, ws)
}

// Connect dials addr and adds the resulting connection to the mesh.
func (n *Network) Connect(addr string) (uuid.UUID, error) {
	ws, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/peer", addr), nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("peer: connecting to %s: %w", addr, err)
	}

	id := uuid.New()
	n.adopt(id, ws)

	return id, nil
}

func (n *Network) adopt(id uuid.UUID, ws *websocket.Conn) {
	c := &conn{id: id, ws: ws}

	n.mu.Lock()
	n.conns[id] = c
	n.mu.Unlock()

	n.connectListenersMu.RLock()
	listeners := append([]func(uuid.UUID){}, n.connectListeners...)
	n.connectListenersMu.RUnlock()
	for _, l := range listeners {
		l(id)
	}

	go n.readLoop(c)
}

func (n *Network) readLoop(c *conn) {
	defer n.drop(c.id)

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		env, err := decodeEnvelope(raw)
		if err != nil {
			n.evHandler("peer: decoding envelope from %s: %s", c.id, err)
			continue
		}

		n.dispatch(c.id, env)
	}
}

func (n *Network) drop(id uuid.UUID) {
	n.mu.Lock()
	delete(n.conns, id)
	n.mu.Unlock()

	n.connectListenersMu.RLock()
	listeners := append([]func(uuid.UUID){}, n.disconnectListeners...)
	n.connectListenersMu.RUnlock()
	for _, l := range listeners {
		l(id)
	}
}

func (n *Network) dispatch(from uuid.UUID, env envelope) {
	n.listenersMu.RLock()
	listeners := append([]Listener{}, n.listeners[env.kind]...)
	n.listenersMu.RUnlock()

	for _, l := range listeners {
		l(from, env.payload)
	}
}

// SendObject broadcasts a message to every connected peer.
func (n *Network) SendObject(kind MessageKind, payload []byte) {
	raw, err := encodeEnvelope(kind, payload)
	if err != nil {
		n.evHandler("peer: encoding envelope: %s", err)
		return
	}

	n.mu.RLock()
	conns := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		conns = append(conns, c)
	}
	n.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(raw); err != nil {
			n.evHandler("peer: sending to %s: %s", c.id, err)
		}
	}
}

// SendObjectTo sends a message to a single named peer.
func (n *Network) SendObjectTo(id uuid.UUID, kind MessageKind, payload []byte) error {
	n.mu.RLock()
	c, ok := n.conns[id]
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("peer: %s is not connected", id)
	}

	raw, err := encodeEnvelope(kind, payload)
	if err != nil {
		return err
	}

	return c.send(raw)
}

// SendObjectToSelf delivers a message straight to this process's own
// listeners without touching the wire, used by tangle-file load and
// by any node narrating its own genesis sync to itself.
func (n *Network) SendObjectToSelf(kind MessageKind, payload []byte) {
	n.dispatch(n.self, envelope{kind: kind, payload: payload})
}

// Disconnect closes every connection and stops accepting new ones.
func (n *Network) Disconnect() error {
	if n.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = n.server.Shutdown(ctx)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for id, c := range n.conns {
		_ = c.ws.Close()
		delete(n.conns, id)
	}

	return nil
}
