// Package dispatch implements the receiver's main loop: it demultiplexes
// incoming datagrams by source address into isolated writer tasks running
// on the work-stealing pool.
package dispatch

import (
	"log/slog"
	"sync"

	"udpftp/conn"
	"udpftp/executor"
	"udpftp/pdu"
	"udpftp/writer"
)

// Receiver owns the listening endpoint, the executor that runs every
// peer's writer task, and the table of live peers.
type Receiver struct {
	ep      *conn.Endpoint
	pool    *executor.Pool
	outRoot string
	log     *slog.Logger

	mu    sync.Mutex
	peers map[string]*peerState
}

type peerState struct {
	task    *writer.Task
	closing bool
}

// New creates a receiver bound to ep, writing files under outRoot, and
// running writer tasks on pool.
func New(ep *conn.Endpoint, pool *executor.Pool, outRoot string, log *slog.Logger) *Receiver {
	return &Receiver{
		ep:      ep,
		pool:    pool,
		outRoot: outRoot,
		log:     log,
		peers:   make(map[string]*peerState),
	}
}

// Serve blocks, dispatching one datagram per iteration, until stop is
// closed or a fatal socket error occurs.
func (r *Receiver) Serve(stop <-chan struct{}) error {
	scratch := make([]byte, pdu.MaxDgramSz)
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		n, err := r.ep.RecvRaw(scratch)
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
			}
			return err
		}
		peerKey := r.ep.PeerKey()
		r.handleDatagram(peerKey, scratch[:n])
	}
}

func (r *Receiver) handleDatagram(peerKey string, raw []byte) {
	in, decErr := pdu.Decode(raw)
	if decErr != nil {
		r.sendAck(pdu.ERROR, pdu.ErrorBadDgram, 0)
		return
	}

	if in.Mtype == pdu.CONNECT {
		r.handleConnect(peerKey, in)
		return
	}

	st := r.peerFor(peerKey)
	if st == nil {
		r.log.Warn("datagram from unknown peer before CONNECT", "peer", peerKey, "mtype", in.Mtype)
		r.sendAck(pdu.ERROR, pdu.ErrorProtocol, r.ep.SeqForPeer(peerKey))
		return
	}

	respType, errNum := pdu.Validate(in, len(raw), pdu.MaxBuffSz)
	if errNum != pdu.NoError {
		seq := r.ep.AdvanceSeqForPeer(peerKey, 0)
		r.sendAck(respType, errNum, seq)
		return
	}

	if in.Mtype == pdu.CLOSE {
		seq := r.ep.AdvanceSeqForPeer(peerKey, 0)
		r.sendAck(pdu.CLOSEACK, pdu.NoError, seq)
		r.closePeer(peerKey, st)
		return
	}

	if respType == 0 {
		r.log.Warn("unexpected mtype from peer", "peer", peerKey, "mtype", in.Mtype)
		r.sendAck(pdu.ERROR, pdu.ErrorProtocol, r.ep.SeqForPeer(peerKey))
		return
	}

	// Ack before handing the payload off: the ack means "accepted into
	// the pipeline", not "durably written", and must not wait behind a
	// full writer channel.
	payload := raw[pdu.HeaderSize:]
	seq := r.ep.AdvanceSeqForPeer(peerKey, int32(len(payload)))
	r.sendAck(respType, pdu.NoError, seq)
	if !st.task.PushToChannel(append([]byte(nil), payload...)) {
		r.log.Error("writer channel closed, dropping frame", "peer", peerKey)
	}
}

func (r *Receiver) handleConnect(peerKey string, in pdu.Header) {
	r.mu.Lock()
	st, exists := r.peers[peerKey]
	r.mu.Unlock()
	if exists && !st.closing {
		// Duplicate CONNECT (e.g. a retried handshake whose CNTACK was
		// dropped): re-ack, keep the existing writer.
		seq := r.ep.AdvanceSeqForPeer(peerKey, 0)
		r.sendAck(pdu.CNTACK, pdu.NoError, seq)
		return
	}

	seq := pdu.NextSeq(in.Seqnum, 0)
	r.ep.SetSeqForPeer(peerKey, seq)

	task := writer.NewTask(r.outRoot, peerKey, r.log)
	r.mu.Lock()
	r.peers[peerKey] = &peerState{task: task}
	r.mu.Unlock()

	ok := r.pool.Submit(func(w *executor.Worker) {
		task.ServerLoop()
		r.removePeer(peerKey, task)
	})
	if !ok {
		task.Close()
		r.removePeer(peerKey, task)
		r.ep.DeleteSeqForPeer(peerKey)
		r.log.Warn("rejecting connect, executor shut down", "peer", peerKey)
		return
	}

	r.sendAck(pdu.CNTACK, pdu.NoError, seq)
	r.log.Info("peer connected", "peer", peerKey, "seq", seq)
}

func (r *Receiver) peerFor(peerKey string) *peerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers[peerKey]
}

// closePeer closes the peer's channel so its writer drains and exits.
// The map entry stays until the writer task reports completion via
// removePeer, so the peer is observable as CLOSING in between.
func (r *Receiver) closePeer(peerKey string, st *peerState) {
	r.mu.Lock()
	st.closing = true
	r.mu.Unlock()
	r.ep.DeleteSeqForPeer(peerKey)
	st.task.Close()
	r.log.Info("peer closed", "peer", peerKey)
}

// removePeer drops the map entry once the writer task has exited. The
// task pointer guards against removing a newer entry for a peer that
// reconnected while the old writer was still draining.
func (r *Receiver) removePeer(peerKey string, task *writer.Task) {
	r.mu.Lock()
	if st, ok := r.peers[peerKey]; ok && st.task == task {
		delete(r.peers, peerKey)
	}
	r.mu.Unlock()
	r.log.Debug("writer exited", "peer", peerKey)
}

// ActivePeers reports the peer keys that currently hold a writer entry,
// including ones still draining after CLOSE. Debug/test accessor.
func (r *Receiver) ActivePeers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.peers))
	for k := range r.peers {
		keys = append(keys, k)
	}
	return keys
}

// CloseAll closes every live writer channel so in-flight writer tasks
// drain and exit. Called on shutdown before the executor pool is drained;
// without it a peer that never sent CLOSE would block the pool forever.
func (r *Receiver) CloseAll() {
	r.mu.Lock()
	tasks := make([]*writer.Task, 0, len(r.peers))
	for _, st := range r.peers {
		if !st.closing {
			st.closing = true
			tasks = append(tasks, st.task)
		}
	}
	r.mu.Unlock()
	for _, t := range tasks {
		t.Close()
	}
}

func (r *Receiver) sendAck(mtype pdu.MsgType, errNum int32, seq uint32) {
	buf := make([]byte, pdu.HeaderSize)
	h := pdu.NewHeader(mtype, seq, 0, errNum)
	if _, err := h.Encode(buf); err != nil {
		return
	}
	if _, err := r.ep.SendRaw(buf); err != nil {
		r.log.Error("failed to send ack", "err", err)
	}
}
