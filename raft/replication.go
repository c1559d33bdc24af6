// raft/replication.go
package raft

import "github.com/google/uuid"

// broadcastHeartbeat sends an empty LogRequest to every follower,
// piggy-backing CommitLength so followers can advance their own commit
// point even when there's nothing new to replicate. Because it always
// probes at the leader's current log length, a follower that has fallen
// behind replies success=false and the ordinary back-off path in
// handleLogResponse takes over.
func (n *Node) broadcastHeartbeat() {
	if n.role != Leader {
		return
	}
	n.logger.LogHeartbeatSent(n.currentTerm, len(n.peers))
	for _, peer := range n.peers {
		n.bus.Broadcast(LogRequest{
			LeaderID:         n.ID,
			Term:             n.currentTerm,
			Entries:          nil,
			PreviousLogIndex: uint64(len(n.log)),
			PreviousLogTerm:  n.lastLogTerm(),
			ToNode:           peer,
			CommitLength:     n.commitLength,
		})
	}
	n.resetHeartbeatTimeout()
}

// replicateTo sends a LogRequest carrying everything from sentLength[peer]
// onward.
func (n *Node) replicateTo(peer uuid.UUID) {
	previousLogIndex := n.sentLength[peer]
	entries := append([]LogEntry(nil), n.log[previousLogIndex:]...)
	var previousLogTerm uint64
	if previousLogIndex > 0 {
		previousLogTerm = n.log[previousLogIndex-1].Term
	}
	n.bus.Broadcast(LogRequest{
		LeaderID:         n.ID,
		Term:             n.currentTerm,
		PreviousLogIndex: previousLogIndex,
		PreviousLogTerm:  previousLogTerm,
		Entries:          entries,
		CommitLength:     n.commitLength,
		ToNode:           peer,
	})
}

// appendEntries is the follower-side log-merge step: truncate the log at
// the first conflicting entry and append whatever the leader sent beyond
// that point, rather than truncating one index early.
func (n *Node) appendEntries(previousLogIndex, leaderCommit uint64, entries []LogEntry) {
	if len(entries) > 0 && uint64(len(n.log)) > previousLogIndex {
		conflictAt := min(uint64(len(n.log)), previousLogIndex+uint64(len(entries))) - 1
		if n.log[conflictAt].Term != entries[conflictAt-previousLogIndex].Term {
			n.log = n.log[:previousLogIndex]
		}
	}
	if previousLogIndex+uint64(len(entries)) > uint64(len(n.log)) {
		n.log = append(n.log, entries[uint64(len(n.log))-previousLogIndex:]...)
	}
	if leaderCommit > n.commitLength {
		newlyCommitted := make([]Command, 0, leaderCommit-n.commitLength)
		for _, entry := range n.log[n.commitLength:leaderCommit] {
			newlyCommitted = append(newlyCommitted, entry.Command)
		}
		n.bus.AddAppMessages(newlyCommitted)
		n.commitLength = leaderCommit
	}
	n.persist()
}

// handleLogRequest is the follower-side handler for an inbound LogRequest:
// it accepts the leader's authority for the term, checks the log still
// matches at PreviousLogIndex/PreviousLogTerm, and merges in any new
// entries on a match.
func (n *Node) handleLogRequest(m LogRequest) {
	n.adoptTermIfNewer(m.Term)

	if m.Term == n.currentTerm {
		n.role = Follower
		n.resetElectionTimeout()
		n.currentLeader = &m.LeaderID
		n.logger.LogAppendEntries(m.LeaderID, m.Term, m.PreviousLogIndex, len(m.Entries))
	}

	logOK := uint64(len(n.log)) >= m.PreviousLogIndex &&
		(m.PreviousLogIndex == 0 || n.log[m.PreviousLogIndex-1].Term == m.PreviousLogTerm)

	if m.Term == n.currentTerm && logOK {
		n.appendEntries(m.PreviousLogIndex, m.CommitLength, m.Entries)
		n.bus.Broadcast(LogResponse{
			FollowerID:   n.ID,
			Term:         n.currentTerm,
			Acknowledged: m.PreviousLogIndex + uint64(len(m.Entries)),
			Success:      true,
		})
		return
	}

	n.bus.Broadcast(LogResponse{
		FollowerID:   n.ID,
		Term:         n.currentTerm,
		Acknowledged: 0,
		Success:      false,
	})
}

// handleLogResponse is the leader-side handler for a follower's reply to
// a LogRequest: on success it advances that follower's matched and acked
// indices and checks whether a new quorum prefix can be committed; on
// failure it backs the follower off by one index and retries.
func (n *Node) handleLogResponse(m LogResponse) {
	if n.adoptTermIfNewer(m.Term) {
		return
	}
	if m.Term != n.currentTerm || n.role != Leader {
		return
	}
	if _, known := n.sentLength[m.FollowerID]; !known {
		return // peer no longer in cohort; ignore
	}

	if m.Success && m.Acknowledged >= n.ackedLength[m.FollowerID] {
		n.sentLength[m.FollowerID] = m.Acknowledged
		n.ackedLength[m.FollowerID] = m.Acknowledged
		n.commitLogEntries()
	} else if !m.Success && n.sentLength[m.FollowerID] > 0 {
		n.sentLength[m.FollowerID]--
		n.replicateTo(m.FollowerID)
	}
}

// commitLogEntries advances commitLength past every index acknowledged by
// a quorum of the full cohort (the leader's own full log always counts).
func (n *Node) commitLogEntries() {
	for n.commitLength < uint64(len(n.log)) {
		acks := 1 // the leader always acks its own full log
		for _, peer := range n.peers {
			if n.ackedLength[peer] > n.commitLength {
				acks++
			}
		}
		if acks < quorum(n.cohortSize) {
			break
		}
		n.bus.AddAppMessages([]Command{n.log[n.commitLength].Command})
		n.logger.LogCommit(n.commitLength, n.log[n.commitLength].Term)
		n.commitLength++
	}
}
