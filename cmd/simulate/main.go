// Command simulate runs an end-to-end commit scenario: it builds an
// N-node cohort, advances it one Iterate() at a time, optionally submits
// one command once a leader is found, and prints the committed
// application stream.
package main

import (
	"flag"
	"fmt"
	"log"

	"raftsim/cohort"
	"raftsim/raft"
)

func main() {
	nodes := flag.Int("nodes", 3, "number of replicas in the simulated cohort")
	iterations := flag.Int("iterations", 2000, "maximum number of Iterate() steps to run")
	submitKey := flag.String("submit", "", "if set, submit PUT <key>=<value> once a leader is found")
	submitValue := flag.String("value", "", "value to submit alongside -submit")
	verbose := flag.Bool("v", false, "log every state transition")
	flag.Parse()

	if *nodes < 1 {
		log.Fatalf("-nodes must be at least 1, got %d", *nodes)
	}

	var logger *raft.Logger
	if *verbose {
		logger = raft.NewLogger("sim", raft.DEBUG)
	}

	c := cohort.NewUniform(*nodes, logger)

	submitted := false
	var leaderID string

	for i := 0; i < *iterations; i++ {
		c.Iterate()

		if *submitKey != "" && !submitted {
			for _, n := range c.Nodes() {
				if n.Snapshot().Role == raft.Leader {
					n.Submit(raft.Command{Type: "PUT", Key: *submitKey, Value: []byte(*submitValue)})
					submitted = true
					leaderID = n.ID.String()
					break
				}
			}
		}
	}

	fmt.Printf("ran %d iterations over %d replicas\n", *iterations, *nodes)
	if *submitKey != "" {
		if !submitted {
			fmt.Println("no leader was elected in time; nothing was submitted")
		} else {
			fmt.Printf("submitted PUT %s=%s to leader %s\n", *submitKey, *submitValue, leaderID)
		}
	}

	committed := c.AppMessages()
	fmt.Printf("committed application stream (%d entries):\n", len(committed))
	for i, cmd := range committed {
		fmt.Printf("  [%d] %s %s=%q\n", i, cmd.Type, cmd.Key, cmd.Value)
	}

	roles := map[raft.Role]int{}
	for _, n := range c.Nodes() {
		roles[n.Snapshot().Role]++
	}
	fmt.Printf("final roles: %d leader(s), %d candidate(s), %d follower(s)\n",
		roles[raft.Leader], roles[raft.Candidate], roles[raft.Follower])
}
