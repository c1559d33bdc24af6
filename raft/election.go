// raft/election.go
package raft

import "github.com/google/uuid"

// startElection begins a new term and canvasses the cohort for votes. It
// covers both the very first election a follower calls when its timer
// lapses and a candidate's repeat attempt after a split vote.
func (n *Node) startElection() {
	oldRole := n.role
	n.currentTerm++
	n.role = Candidate
	n.votedFor = &n.ID
	n.votesReceived = map[uuid.UUID]bool{n.ID: true}
	n.persist()

	n.logger.LogStateChange(oldRole, Candidate, n.currentTerm)
	n.logger.LogElectionStart(n.currentTerm)

	n.resetElectionTimeout()
	n.resetHeartbeatTimeout()

	if len(n.peers) == 0 {
		// Single-node cohort: the self-vote already constitutes a
		// quorum, and there is nobody to send a VoteRequest to.
		n.logger.LogElectionWon(n.currentTerm, 1, uint64(quorum(n.cohortSize)))
		n.becomeLeader()
		return
	}

	n.bus.Broadcast(VoteRequest{
		CandidateID:  n.ID,
		Term:         n.currentTerm,
		LastLogIndex: uint64(len(n.log)),
		LastLogTerm:  n.lastLogTerm(),
	})
}

// isLogUpToDate reports whether a candidate's log must be at least as
// up to date as ours before we can grant it our vote: a strictly newer
// last-entry term wins outright, and a tie is broken by log length.
func (n *Node) isLogUpToDate(candidateLastIndex, candidateLastTerm uint64) bool {
	lastTerm := n.lastLogTerm()
	if candidateLastTerm != lastTerm {
		return candidateLastTerm > lastTerm
	}
	return candidateLastIndex >= uint64(len(n.log))
}

// handleVoteRequest decides whether to grant a candidate our vote: the
// candidate's term must be current, its log must be at least as up to
// date as ours, and we must not have already voted for someone else this
// term.
func (n *Node) handleVoteRequest(m VoteRequest) {
	if n.adoptTermIfNewer(m.Term) {
		n.resetElectionTimeout()
	}

	logOK := n.isLogUpToDate(m.LastLogIndex, m.LastLogTerm)
	granted := m.Term == n.currentTerm && logOK &&
		(n.votedFor == nil || *n.votedFor == m.CandidateID)

	if granted {
		n.votedFor = &m.CandidateID
		n.persist()
		n.logger.LogVoteGranted(m.CandidateID, m.Term)
		n.resetElectionTimeout()
	} else {
		n.logger.LogVoteDenied(m.CandidateID, m.Term, "term mismatch, stale log, or already voted")
	}

	n.bus.Broadcast(VoteResponse{
		VoterID:     n.ID,
		CandidateID: m.CandidateID,
		Term:        n.currentTerm,
		Granted:     granted,
	})
}

// handleVoteResponse tallies granted votes while still a candidate in the
// matching term, transitioning to leader the instant a quorum is
// reached.
func (n *Node) handleVoteResponse(m VoteResponse) {
	if n.adoptTermIfNewer(m.Term) {
		n.resetElectionTimeout()
		n.resetHeartbeatTimeout()
		return
	}

	if n.role != Candidate || m.Term != n.currentTerm || !m.Granted {
		return
	}

	n.votesReceived[m.VoterID] = true
	granted := 0
	for _, ok := range n.votesReceived {
		if ok {
			granted++
		}
	}
	if granted >= quorum(n.cohortSize) {
		n.logger.LogElectionWon(n.currentTerm, uint64(granted), uint64(quorum(n.cohortSize)))
		n.becomeLeader()
	}
}

// becomeLeader transitions a winning candidate to leader and immediately
// begins replication to every peer.
func (n *Node) becomeLeader() {
	n.role = Leader
	n.currentLeader = &n.ID
	n.resetHeartbeatTimeout()
	n.ackedLength[n.ID] = uint64(len(n.log))

	for _, peer := range n.peers {
		n.sentLength[peer] = uint64(len(n.log))
		n.ackedLength[peer] = 0
		n.replicateTo(peer)
	}
}
