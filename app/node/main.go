package main

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ardanlabs/conf/v3"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/logger"
	"github.com/adamwoolhether/tangle/foundation/tangle/graph"
	"github.com/adamwoolhether/tangle/foundation/tangle/node"
	"github.com/adamwoolhether/tangle/foundation/tangle/peer"
	"github.com/adamwoolhether/tangle/foundation/tangle/sync"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
	"github.com/adamwoolhether/tangle/foundation/tangle/worker"
)

// build is the git version of this program, set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Fprint(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(exitCode(err))
	}
}

// exitCode maps a startup error to the process exit status §6.5
// documents: 1 for bad usage, 2 for a failed bootstrap connection.
func exitCode(err error) int {
	var connErr *connectFailure
	if errors.As(err, &connErr) {
		return 2
	}

	return 1
}

type connectFailure struct{ addr string }

func (e *connectFailure) Error() string { return fmt.Sprintf("connecting to %s", e.addr) }

func run(log *zap.SugaredLogger) error {
	// /////////////////////////////////////////////////////////////////
	// Configuration
	cfg := struct {
		conf.Version
		Web struct {
			ShutdownTimeout time.Duration `conf:"default:5s"`
		}
		Node struct {
			Host       string   `conf:"default:0.0.0.0:9080"`
			KeyPath    string   `conf:"default:zblock/accounts/miner1.ecdsa"`
			KnownPeers []string `conf:"default:"`
			Difficulty uint     `conf:"default:2"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}

		return fmt.Errorf("parsing config: %w", err)
	}

	var header = `
	████████╗ █████╗ ███╗   ██╗ ██████╗ ██╗     ███████╗
	╚══██╔══╝██╔══██╗████╗  ██║██╔════╝ ██║     ██╔════╝
	   ██║   ███████║██╔██╗ ██║██║  ███╗██║     █████╗
	   ██║   ██╔══██║██║╚██╗██║██║   ██║██║     ██╔══╝
	   ██║   ██║  ██║██║ ╚████║╚██████╔╝███████╗███████╗
	   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═══╝ ╚═════╝ ╚══════╝╚══════╝`
	fmt.Println(header)

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
	}

	// /////////////////////////////////////////////////////////////////
	// Key loading
	keys, err := loadOrGenerateKeyPair(cfg.Node.KeyPath)
	if err != nil {
		return fmt.Errorf("loading key pair: %w", err)
	}
	log.Infow("startup", "status", "keys ready", "account", crypto.AccountIDFromPublicKey(keys.Public))

	// /////////////////////////////////////////////////////////////////
	// Tangle / peer-network / sync wiring
	tangle := graph.New(graph.Config{EvHandler: ev})
	net := peer.NewNetwork(uuid.New(), ev)
	peers := peer.NewSet()
	handler := sync.New(tangle, net, peers, keys, ev)

	if err := net.Awake(cfg.Node.Host); err != nil {
		return fmt.Errorf("starting peer network: %w", err)
	}

	if len(cfg.Node.KnownPeers) == 0 {
		// Bootstrapping a fresh network: we are our own genesis, and we
		// credit ourselves the entire initial supply.
		outputs := []transaction.Output{{Account: keys.Public, Amount: math.MaxFloat64}}
		gen := node.New(nil, nil, outputs, 0)
		tangle.SetGenesis(gen)
		log.Infow("startup", "status", "established a new network", "host", net.Addr())
	} else {
		// Dial every known peer concurrently rather than one at a time;
		// every dial runs to completion, and the first failure is the
		// one reported.
		var g errgroup.Group
		for _, addr := range cfg.Node.KnownPeers {
			addr := addr
			g.Go(func() error {
				if _, err := net.Connect(addr); err != nil {
					return &connectFailure{addr: addr}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		net.SendObject(sync.KindPublicKeySyncRequest, nil)
		handler.StartGenesisVote()
		log.Infow("startup", "status", "connected to known peers", "host", net.Addr())
	}

	w := worker.Run(handler, ev)
	defer w.Shutdown()
	defer net.Disconnect()

	// /////////////////////////////////////////////////////////////////
	// Pinging toggle: always registered, gated by an in-memory flag
	// rather than added/removed, since the peer network's pub/sub mesh
	// has no listener-removal primitive to mirror the original's
	// remove_data_listener call.
	pinging := &pingState{
		handler:    handler,
		net:        net,
		peers:      peers,
		keys:       keys,
		difficulty: uint8(cfg.Node.Difficulty),
	}
	net.AddDataListener(sync.KindAddTransactionRequest, func(_ uuid.UUID, payload []byte) {
		pinging.maybeForward(payload)
	})

	fmt.Println("Press `h` for additional instruction")

	// /////////////////////////////////////////////////////////////////
	// Interactive driver. A single reader owns stdin: the command loop
	// and every follow-on prompt (account hash, save path, ...) run in
	// this same goroutine, since two independent bufio.Readers wrapping
	// the same os.Stdin would each buffer independently and corrupt
	// each other's input. A SIGINT/SIGTERM can't interrupt a blocked
	// Read, so — mirroring the original's signal-handler-calls-cleanup
	// design rather than a channel handoff — it runs cleanup and exits
	// directly instead of unblocking this loop.
	in := bufio.NewReader(os.Stdin)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-shutdown
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)

		done := make(chan struct{})
		go func() {
			w.Shutdown()
			net.Disconnect()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(cfg.Web.ShutdownTimeout):
			log.Infow("shutdown", "status", "forced after timeout", "timeout", cfg.Web.ShutdownTimeout)
		}

		log.Sync()
		os.Exit(0)
	}()

	d := &driver{
		handler: handler,
		net:     net,
		peers:   peers,
		keys:    keys,
		in:      in,
		pinging: pinging,
	}

	for {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil
		}

		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" {
			continue
		}

		if line[:1] == "q" {
			return nil
		}

		d.dispatch(line[:1])
	}
}

// loadOrGenerateKeyPair loads an ECDSA key pair from path, or generates
// and persists a fresh one if the file doesn't exist yet.
func loadOrGenerateKeyPair(path string) (crypto.KeyPair, error) {
	if pri, err := ethcrypto.LoadECDSA(path); err == nil {
		return crypto.KeyPair{Private: pri, Public: &pri.PublicKey}, nil
	}

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return crypto.KeyPair{}, err
	}

	if err := ethcrypto.SaveECDSA(path, kp.Private); err != nil {
		return crypto.KeyPair{}, fmt.Errorf("saving generated key to %s: %w", path, err)
	}

	return kp, nil
}

// pingState gates the always-registered forwarding listener behind a
// toggle, simulating "a more vibrant network" per the CLI's (p) command:
// once enabled, every transaction this node observes is, after a short
// delay and once it is present in the local tangle, re-sent onward to a
// random peer for the sum of its output amounts. At most one forward
// runs at a time.
type pingState struct {
	handler    *sync.Handler
	net        *peer.Network
	peers      *peer.Set
	keys       crypto.KeyPair
	difficulty uint8

	enabled bool
	active  int32
}

func (p *pingState) maybeForward(payload []byte) {
	if !p.enabled || atomic.LoadInt32(&p.active) > 0 {
		return
	}

	msg, err := sync.DecodeTransactionMessage(payload)
	if err != nil {
		return
	}

	var received float64
	for _, o := range msg.Transaction.Outputs {
		received += o.Amount
	}
	if received <= 0 {
		return
	}

	go func() {
		atomic.AddInt32(&p.active, 1)
		defer atomic.AddInt32(&p.active, -1)

		time.Sleep(500 * time.Millisecond)

		if p.handler.Tangle().Find(msg.Transaction.Hash) == nil {
			return
		}

		others := p.peers.Copy(p.net.Self())
		if len(others) == 0 {
			return
		}

		chosen := others[rand.Intn(len(others))]
		account, ok := p.peers.Key(chosen.ID)
		if !ok {
			return
		}

		sig, err := transaction.SignInput(p.keys.Private, received)
		if err != nil {
			return
		}

		inputs := []transaction.Input{{Account: p.keys.Public, Amount: received, Signature: sig}}
		outputs := []transaction.Output{{Account: account, Amount: received}}

		n, err := p.handler.Tangle().CreateAndMine(inputs, outputs, p.difficulty)
		if err != nil {
			return
		}

		if _, err := p.handler.Tangle().Add(n); err != nil {
			return
		}

		_ = p.handler.BroadcastTransaction(n)
	}()
}

// driver dispatches single-character CLI commands against a live node.
type driver struct {
	handler *sync.Handler
	net     *peer.Network
	peers   *peer.Set
	keys    crypto.KeyPair
	in      *bufio.Reader
	pinging *pingState
}

func (d *driver) dispatch(cmd string) {
	switch cmd {
	case "b":
		d.balance()
	case "c":
		fmt.Print("\033[H\033[2J")
	case "d":
		d.debug()
	case "h":
		d.help()
	case "g":
		d.handler.Tangle().Prune()
		fmt.Printf("genesis is now %s\n", d.handler.Tangle().Genesis().Hash)
	case "k":
		d.keyManagement()
	case "p":
		d.pinging.enabled = !d.pinging.enabled
		if d.pinging.enabled {
			fmt.Println("Started pinging transactions")
		} else {
			fmt.Println("Stopped pinging transactions")
		}
	case "s":
		d.save()
	case "l":
		d.load()
	case "t":
		d.transaction()
	case "w":
		d.net.SendObjectToSelf(sync.KindUpdateWeightsRequest, nil)
	default:
		fmt.Printf("unrecognized command %q; press h for help\n", cmd)
	}
}

func (d *driver) balance() {
	account := crypto.AccountIDFromPublicKey(d.keys.Public)

	b0, _ := d.handler.Tangle().QueryBalance(account, 0)
	b50, _ := d.handler.Tangle().QueryBalance(account, .5)
	b95, _ := d.handler.Tangle().QueryBalance(account, .95)

	fmt.Printf("Our (%s) balance is: %.6f (0%%) %.6f (50%%) %.6f (95%%)\n", account, b0, b50, b95)
}

func (d *driver) debug() {
	fmt.Printf("genesis: %s\n", d.handler.Tangle().Genesis().Hash)
	for _, tip := range d.handler.Tangle().Tips() {
		fmt.Printf("  tip: %s (height %d)\n", tip.Hash, tip.Height())
	}

	fmt.Print("Enter transaction hash (blank = skip): ")
	hash, _ := d.in.ReadString('\n')
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return
	}

	n := d.handler.Tangle().Find(hash)
	if n == nil {
		fmt.Println("not found")
		return
	}

	fmt.Printf("%s: %d inputs, %d outputs, parents=%v\n", n.Hash, len(n.Inputs), len(n.Outputs), n.ParentHashes)
}

func (d *driver) help() {
	fmt.Print(`Tangle operations:
(b)alance - Query our current balance (also displays our address)
(c)lear - Clear the screen
(d)ebug - Display a debug output of the tangle and (optionally) a transaction in the tangle
(h)elp - Show this help message
(g)enerate - Generates the Latest Common Genesis and prunes the tangle
(k)ey management - Options to manage your keys
(p)inging toggle - Toggle whether received transactions should be immediately forwarded elsewhere
(s)ave - Save the tangle to a file
(l)oad - Loads a tangle from a file
(t)ransaction - Create a new transaction
(w)eights - Manually start propagating weights through the tangle

Select an operation:
`)
}

func (d *driver) keyManagement() {
	fmt.Print("(l)oad, (s)ave, (g)enerate: ")
	sub, _ := d.in.ReadString('\n')
	sub = strings.ToLower(strings.TrimSpace(sub))
	if sub == "" {
		return
	}

	switch sub[:1] {
	case "g":
		kp, err := crypto.GenerateKeyPair()
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		d.keys = kp
		fmt.Println("generated a new key pair (not yet persisted; use (s)ave)")

	case "s":
		fmt.Print("Relative path: ")
		path, _ := d.in.ReadString('\n')
		path = strings.TrimSpace(path)
		if err := ethcrypto.SaveECDSA(path, d.keys.Private); err != nil {
			fmt.Println("error:", err)
		}

	case "l":
		fmt.Print("Relative path: ")
		path, _ := d.in.ReadString('\n')
		path = strings.TrimSpace(path)
		pri, err := ethcrypto.LoadECDSA(path)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		d.keys = crypto.KeyPair{Private: pri, Public: &pri.PublicKey}
	}
}

func (d *driver) save() {
	fmt.Print("Enter relative path to save tangle to: ")
	path, _ := d.in.ReadString('\n')
	path = strings.TrimSpace(path)

	f, err := os.Create(path)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer f.Close()

	if err := d.handler.Save(f); err != nil {
		fmt.Println("error saving:", err)
		return
	}

	fmt.Printf("Tangle saved to %s\n", path)
}

func (d *driver) load() {
	fmt.Print("Enter relative path to load tangle from: ")
	path, _ := d.in.ReadString('\n')
	path = strings.TrimSpace(path)

	f, err := os.Open(path)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer f.Close()

	if err := d.handler.Load(f); err != nil {
		fmt.Println("error loading:", err)
		return
	}

	fmt.Printf("Successfully loaded tangle from %s\n", path)
}

func (d *driver) transaction() {
	fmt.Print("Enter account to transfer to ('r' for random): ")
	accountHash, _ := d.in.ReadString('\n')
	accountHash = strings.TrimSpace(accountHash)

	fmt.Print("Enter amount to transfer: ")
	amountStr, _ := d.in.ReadString('\n')
	amount, err := strconv.ParseFloat(strings.TrimSpace(amountStr), 64)
	if err != nil {
		fmt.Println("invalid amount:", err)
		return
	}

	fmt.Print("Select mining difficulty (1-5): ")
	difficultyStr, _ := d.in.ReadString('\n')
	difficulty, err := strconv.ParseUint(strings.TrimSpace(difficultyStr), 10, 8)
	if err != nil {
		fmt.Println("invalid difficulty:", err)
		return
	}

	var destination *crypto.PublicKey
	if accountHash == "r" {
		known := d.peers.Copy(d.net.Self())
		if len(known) > 0 {
			chosen := known[rand.Intn(len(known))]
			if pub, ok := d.peers.Key(chosen.ID); ok {
				destination = pub
			}
		}
		if destination == nil {
			destination = d.keys.Public
		}
	} else {
		pub, err := d.peers.FindAccount(accountHash)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		destination = pub
	}

	sig, err := transaction.SignInput(d.keys.Private, amount)
	if err != nil {
		fmt.Println("error signing input:", err)
		return
	}

	inputs := []transaction.Input{{Account: d.keys.Public, Amount: amount, Signature: sig}}
	outputs := []transaction.Output{{Account: destination, Amount: amount}}

	n, err := d.handler.Tangle().CreateAndMine(inputs, outputs, uint8(difficulty))
	if err != nil {
		fmt.Println("error mining:", err)
		return
	}

	if _, err := d.handler.Tangle().Add(n); err != nil {
		fmt.Println("error adding transaction:", err)
		return
	}

	if err := d.handler.BroadcastTransaction(n); err != nil {
		fmt.Println("warning: broadcasting transaction:", err)
	}

	fmt.Printf("Sent %.6f to %s\n", amount, crypto.AccountIDFromPublicKey(destination))
}
