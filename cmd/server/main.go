// Command server runs a single raft replica as a long-lived process,
// wired to real peers over the network rather than the in-memory cohort
// harness cmd/simulate drives: a real timer instead of Tick() calls
// driven by a test loop, transport.Server/Client instead of
// cohort.Cohort.Broadcast, and demoapp.KVMachine instead of an in-process
// application command slice.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"raftsim/cluster"
	"raftsim/demoapp"
	"raftsim/raft"
	"raftsim/transport"
)

// networkBus adapts a real transport.Client + cluster.PeerDirectory into
// raft.Bus: Broadcast resolves every known peer's address and sends the
// envelope over grpc, instead of appending to an in-memory queue.
type networkBus struct {
	client    *transport.Client
	directory *cluster.PeerDirectory
	machine   *demoapp.KVMachine
	commitAt  uint64
	logger    *raft.Logger
}

func (b *networkBus) Broadcast(msg raft.Message) {
	toNode := uuid.Nil
	if lr, ok := msg.(raft.LogRequest); ok {
		toNode = lr.ToNode
	}

	targets := b.directory.Peers()
	for _, peer := range targets {
		if toNode != uuid.Nil && peer.ID != toNode {
			continue
		}
		env, err := transport.EncodeEnvelope(msg, toNode)
		if err != nil {
			b.logger.Error("failed to encode outbound message: %v", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = b.client.Send(ctx, peer.Address, env)
		cancel()
		if err != nil {
			b.logger.Warn("failed to send to %s (%s): %v", peer.ID, peer.Address, err)
		}
	}
}

func (b *networkBus) AddAppMessages(commands []raft.Command) {
	if err := b.machine.ApplyCommitted(b.commitAt, commands); err != nil {
		b.logger.Error("failed to apply committed commands: %v", err)
		return
	}
	b.commitAt += uint64(len(commands))
}

func parsePeers(spec string) (map[uuid.UUID]string, error) {
	peers := make(map[uuid.UUID]string)
	if spec == "" {
		return peers, nil
	}
	for _, entry := range strings.Split(spec, ",") {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed peer entry %q, want id=address", entry)
		}
		id, err := uuid.Parse(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("malformed peer id %q: %w", parts[0], err)
		}
		peers[id] = strings.TrimSpace(parts[1])
	}
	return peers, nil
}

func main() {
	id := flag.String("id", "", "this replica's stable identity (UUID); generated if omitted")
	listen := flag.String("listen", ":9000", "address to listen for peer traffic on")
	peersFlag := flag.String("peers", "", "comma-separated id=address list of other replicas")
	dataDir := flag.String("data", "./data", "directory for the raft WAL and kv op log")
	tick := flag.Duration("tick", 100*time.Millisecond, "how often to advance the replica's logical clock")
	flag.Parse()

	logger := raft.NewLogger(shortID(*id), raft.INFO)

	peerAddrs, err := parsePeers(*peersFlag)
	if err != nil {
		log.Fatalf("invalid -peers: %v", err)
	}

	directory := cluster.NewPeerDirectory()
	peerIDs := make([]uuid.UUID, 0, len(peerAddrs))
	for peerID, addr := range peerAddrs {
		if err := directory.Register(peerID, addr); err != nil {
			log.Fatalf("failed to register peer: %v", err)
		}
		peerIDs = append(peerIDs, peerID)
	}

	store, err := raft.NewWALStore(*dataDir)
	if err != nil {
		log.Fatalf("failed to open raft state WAL: %v", err)
	}
	defer store.Close()

	machine, err := demoapp.NewKVMachine(*dataDir)
	if err != nil {
		log.Fatalf("failed to open kv machine: %v", err)
	}
	defer machine.Close()

	client := transport.NewClient()
	defer client.Close()

	bus := &networkBus{client: client, directory: directory, machine: machine, logger: logger}

	cfg := raft.Config{Bus: bus, Store: store, Logger: logger, CohortSize: len(peerIDs) + 1}
	if *id != "" {
		parsed, err := uuid.Parse(*id)
		if err != nil {
			log.Fatalf("invalid -id: %v", err)
		}
		cfg.ID = &parsed
	}
	node := raft.NewNode(cfg)
	node.SetPeers(peerIDs)
	node.SetCohortSize(len(peerIDs) + 1)

	// node is reached from three independent goroutines below: the grpc
	// handler (one per inbound RPC), the ticker, and the REPL loop. Unlike
	// cohort.Cohort, which drives a Node from a single goroutine one step
	// at a time, a long-running replica has no such guarantee, so every
	// call into node is serialized through nodeMu.
	var nodeMu sync.Mutex

	handler := func(env transport.Envelope) {
		msg, err := transport.DecodeEnvelope(env)
		if err != nil {
			logger.Error("failed to decode inbound envelope: %v", err)
			return
		}
		nodeMu.Lock()
		node.HandleMessage(msg)
		nodeMu.Unlock()
	}
	srv := transport.NewServer(handler, logger)
	go func() {
		if err := srv.Start(*listen); err != nil {
			log.Fatalf("transport server stopped: %v", err)
		}
	}()
	defer srv.Stop()

	ticker := time.NewTicker(*tick)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			nodeMu.Lock()
			node.Tick()
			nodeMu.Unlock()
		}
	}()

	log.Printf("raft replica %s listening on %s with %d peers", node.ID, *listen, len(peerIDs))
	log.Println("Enter commands: PUT <key> <value>, GET <key>, QUIT")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch strings.ToUpper(parts[0]) {
		case "PUT":
			if len(parts) < 3 {
				fmt.Println("Usage: PUT <key> <value>")
				continue
			}
			nodeMu.Lock()
			node.Submit(raft.Command{Type: "PUT", Key: parts[1], Value: []byte(strings.Join(parts[2:], " "))})
			nodeMu.Unlock()
			fmt.Println("submitted (not yet necessarily committed)")
		case "GET":
			if len(parts) != 2 {
				fmt.Println("Usage: GET <key>")
				continue
			}
			if v, ok := machine.Get(parts[1]); ok {
				fmt.Printf("%s\n", v)
			} else {
				fmt.Println("(not found)")
			}
		case "QUIT", "EXIT":
			fmt.Println("Shutting down...")
			return
		default:
			fmt.Println("Unknown command. Available: PUT, GET, QUIT")
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("error reading input: %v", err)
	}
}

func shortID(id string) string {
	if id == "" {
		return "node"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
