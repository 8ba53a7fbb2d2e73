// Command relay runs the reference relay server: it accepts websocket
// participants, collects their per-tick INPUT and HASH reports, and
// broadcasts a TICK envelope to everyone once a tick interval elapses. It
// runs no simulation of its own; each participant's own Session carries
// the deterministic core.
package main

import (
	"flag"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"driftlock/engine/relay"
	"driftlock/engine/store"
)

func main() {
	var addr string
	var tickRate int
	flag.StringVar(&addr, "addr", ":8080", "address to listen on")
	flag.IntVar(&tickRate, "tick-rate", 20, "ticks per second")
	flag.Parse()

	srv := newRelayServer(tickRate)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})
	http.HandleFunc("/ws", srv.handleWS)

	stop := make(chan struct{})
	go srv.runTicker(stop)
	defer close(stop)

	log.Printf("relay listening on %s", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("relay failed: %v", err)
	}
}

// relayServer accumulates the current tick's inputs and hash reports
// across participants before assembling and broadcasting one TickMessage.
type relayServer struct {
	hub *relay.Hub

	mu      sync.Mutex
	frame   uint64
	pending map[store.ClientID]store.ActionSet
	hashes  map[store.ClientID]uint32

	tickInterval time.Duration
}

func newRelayServer(tickRate int) *relayServer {
	if tickRate <= 0 {
		tickRate = 20
	}
	return &relayServer{
		hub:          relay.NewHub(),
		pending:      make(map[store.ClientID]store.ActionSet),
		hashes:       make(map[store.ClientID]uint32),
		tickInterval: time.Second / time.Duration(tickRate),
	}
}

func (s *relayServer) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := store.ClientID(r.URL.Query().Get("id"))
	if clientID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	ws, err := relay.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrade failed for %s: %v", clientID, err)
		return
	}
	conn := relay.NewConn(ws)
	s.hub.Join(clientID, conn)
	defer func() {
		s.hub.Leave(clientID)
		s.forgetClient(clientID)
		conn.Close()
	}()

	for {
		env, err := conn.Recv()
		if err != nil {
			return
		}
		switch env.Kind {
		case relay.KindInput:
			msg, err := relay.DecodeInput(env.Payload)
			if err != nil {
				log.Printf("discarding malformed input from %s: %v", clientID, err)
				continue
			}
			s.recordInput(clientID, msg.Data)
		case relay.KindHash:
			msg, err := relay.DecodeHash(env.Payload)
			if err != nil {
				log.Printf("discarding malformed hash from %s: %v", clientID, err)
				continue
			}
			s.recordHash(clientID, msg.Hash)
		default:
			log.Printf("ignoring unexpected envelope kind %d from %s", env.Kind, clientID)
		}
	}
}

func (s *relayServer) recordInput(clientID store.ClientID, data store.ActionSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[clientID] = data
}

func (s *relayServer) recordHash(clientID store.ClientID, h uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[clientID] = h
}

func (s *relayServer) forgetClient(clientID store.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, clientID)
	delete(s.hashes, clientID)
}

func (s *relayServer) runTicker(stop <-chan struct{}) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.broadcastTick()
		}
	}
}

func (s *relayServer) broadcastTick() {
	s.mu.Lock()
	frame := s.frame
	s.frame++

	records := make([]relay.TickInputRecord, 0, len(s.pending))
	var seq uint32
	for _, clientID := range sortedClientIDs(s.pending) {
		seq++
		records = append(records, relay.TickInputRecord{Sequence: seq, ClientID: clientID, Data: s.pending[clientID]})
	}
	s.pending = make(map[store.ClientID]store.ActionSet)
	majority := majorityHash(s.hashes)
	s.hashes = make(map[store.ClientID]uint32)
	s.mu.Unlock()

	s.hub.BroadcastTick(relay.TickMessage{
		Frame:        frame,
		Inputs:       records,
		MajorityHash: majority,
		ServerTime:   time.Now().UnixMilli(),
	})
}

func sortedClientIDs(m map[store.ClientID]store.ActionSet) []store.ClientID {
	out := make([]store.ClientID, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// majorityHash returns the plurality hash value across reports, breaking
// ties by picking the lowest hash so every participant resolves the same
// winner. It returns 0 if no client has reported yet.
func majorityHash(hashes map[store.ClientID]uint32) uint32 {
	counts := make(map[uint32]int, len(hashes))
	for _, h := range hashes {
		counts[h]++
	}
	var best uint32
	bestCount := -1
	for h, count := range counts {
		if count > bestCount || (count == bestCount && h < best) {
			best = h
			bestCount = count
		}
	}
	return best
}
