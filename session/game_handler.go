package session

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/tolelom/cardtable/events"
	"github.com/tolelom/cardtable/game"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/protoerr"
)

// GameHandler is spec §4.7's GameHandler: the per-game request tier,
// wrapping a game.State behind a single lock held across every
// read-modify-write, broadcast fan-out, and checkpoint (spec §5).
type GameHandler struct {
	ID     string
	Scope  string
	Source string

	mu       sync.Mutex
	state    *game.State
	streams  map[string]*streamEntry // keyed by presence uuid
	loader   *game.AssetLoader
	finder   game.Finder
	snapshot *namespace.Namespace // Games namespace, scoped to this Scope
	emitter  *events.Emitter

	terminated bool
	lastUsed   time.Time
	rng        *rand.Rand
}

func newGameHandler(id, scope, source string, state *game.State, loader *game.AssetLoader, finder game.Finder, snapshot *namespace.Namespace, emitter *events.Emitter) *GameHandler {
	return &GameHandler{
		ID:       id,
		Scope:    scope,
		Source:   source,
		state:    state,
		streams:  make(map[string]*streamEntry),
		loader:   loader,
		finder:   finder,
		snapshot: snapshot,
		emitter:  emitter,
		lastUsed: time.Now(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type gameSnapshotRecord struct {
	State game.State `json:"state"`
	Seqno int64      `json:"seqno"`
}

func (g *GameHandler) checkpointLocked() {
	if err := g.snapshot.Put(g.ID, gameSnapshotRecord{State: *g.state, Seqno: g.state.Seqno}); err != nil {
		g.emitter.Emit(events.Event{Type: events.EventGameTerminated, Scope: g.Scope, Game: g.ID,
			Data: map[string]any{"checkpoint_error": err.Error()}})
	}
}

// restoreGameHandler resurrects a GameHandler from its persisted
// snapshot, per spec §4.7's SpaceHandler construction step.
func restoreGameHandler(id, scope, source string, rec gameSnapshotRecord, loader *game.AssetLoader, finder game.Finder, snapshot *namespace.Namespace, emitter *events.Emitter) *GameHandler {
	st := rec.State
	st.Reindex()
	g := newGameHandler(id, scope, source, &st, loader, finder, snapshot, emitter)
	g.state.Seqno = rec.Seqno
	return g
}

// Snapshot returns the data required to build a connect_resp: the
// positional [snapshot, seqno] shape spec §9's resolved open question
// settles on.
func (g *GameHandler) Snapshot() (*game.State, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.state.Seqno
}

// Connect adds stream to this game's presence, under the game lock,
// and returns the current snapshot for the connect_resp reply.
func (g *GameHandler) Connect(stream Stream, uuid, name string) (*game.State, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.streams[uuid] = &streamEntry{stream: stream, presence: Presence{UUID: uuid, Name: name, LastKeepalive: time.Now()}}
	g.lastUsed = time.Now()
	g.broadcastPresenceLocked()
	return g.state, g.state.Seqno
}

// Disconnect removes a single stream without closing it (the caller
// already knows the stream is gone) and rebroadcasts presence.
func (g *GameHandler) Disconnect(uuid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.streams[uuid]; !ok {
		return
	}
	delete(g.streams, uuid)
	g.broadcastPresenceLocked()
}

// PresenceCount reports the game's live presence after dropping
// streams whose keepalive is stale (spec §4.8).
func (g *GameHandler) PresenceCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gcStalePresenceLocked()
	return len(g.streams)
}

func (g *GameHandler) gcStalePresenceLocked() {
	now := time.Now()
	var dropped bool
	for uuid, entry := range g.streams {
		if now.Sub(entry.presence.LastKeepalive) > KeepaliveTimeout {
			entry.stream.Close()
			delete(g.streams, uuid)
			dropped = true
		}
	}
	if dropped {
		g.broadcastPresenceLocked()
	}
}

func (g *GameHandler) broadcastPresenceLocked() {
	list := make([]Presence, 0, len(g.streams))
	for _, e := range g.streams {
		list = append(list, e.presence)
	}
	g.broadcastLocked(event("presence", list), "")
}

// broadcastLocked fans payload out to every stream except the one
// named excludeUUID (pass "" to include everyone). A send failure
// drops the offending stream (spec §7's BrokenStream) and schedules a
// follow-up presence broadcast once fan-out completes.
func (g *GameHandler) broadcastLocked(payload any, excludeUUID string) {
	var broken []string
	for uuid, e := range g.streams {
		if uuid == excludeUUID {
			continue
		}
		if err := e.stream.Send(payload); err != nil {
			broken = append(broken, uuid)
		}
	}
	if len(broken) == 0 {
		return
	}
	for _, uuid := range broken {
		delete(g.streams, uuid)
	}
	list := make([]Presence, 0, len(g.streams))
	for _, e := range g.streams {
		list = append(list, e.presence)
	}
	for uuid, e := range g.streams {
		if uuid == excludeUUID {
			continue
		}
		e.stream.Send(event("presence", list))
	}
}

// Keepalive stamps the sender's presence record. No reply is sent
// (spec §4.7).
func (g *GameHandler) Keepalive(uuid string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.streams[uuid]; ok {
		e.presence.LastKeepalive = time.Now()
	}
}

// moveRequest is one entry of a bulkmove payload (spec §6).
type moveRequest struct {
	Card       int    `json:"card"`
	DestType   string `json:"dest_type"`
	DestKeyRaw any    `json:"dest_key"`
	DestOrient int    `json:"dest_orient"`
}

type bulkmovePayload struct {
	Moves []moveRequest `json:"moves"`
}

func destKeyString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", int(v))
	default:
		return fmt.Sprintf("%v", v)
	}
}

type moveUpdate struct {
	Move   moveRequest `json:"move"`
	SrcKey string      `json:"src_key"`
}

type bulkupdateEntry struct {
	DestType string       `json:"dest_type"`
	DestKey  string       `json:"dest_key"`
	Updates  []moveUpdate `json:"updates"`
	ZStack   []int        `json:"z_stack"`
}

// BulkMove implements spec §4.7's bulkmove: apply each move in order,
// dropping (not aborting on) a StateError per entry, then broadcast
// one bulkupdate per destination location and checkpoint.
func (g *GameHandler) BulkMove(moves []moveRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byDest := make(map[game.Location]*bulkupdateEntry)
	var order []game.Location
	for _, m := range moves {
		destKey := destKeyString(m.DestKeyRaw)
		src, err := g.state.MoveCard(m.Card, game.LocationType(m.DestType), destKey, m.DestOrient)
		if err != nil {
			log.Printf("[session] bulkmove: skipping card %d: %v", m.Card, err)
			continue // spec §7: StateError within bulkmove is logged and skipped
		}
		g.state.Seqno++
		dest := game.Location{Type: game.LocationType(m.DestType), Key: destKey}
		entry, ok := byDest[dest]
		if !ok {
			entry = &bulkupdateEntry{DestType: m.DestType, DestKey: destKey}
			byDest[dest] = entry
			order = append(order, dest)
		}
		entry.Updates = append(entry.Updates, moveUpdate{Move: m, SrcKey: src.Key})
	}

	for _, dest := range order {
		entry := byDest[dest]
		if dest.Type == game.Board {
			var key int
			fmt.Sscanf(dest.Key, "%d", &key)
			entry.ZStack = g.state.Board[key]
		} else {
			entry.ZStack = g.state.Hands[dest.Key]
		}
		g.broadcastLocked(event("bulkupdate", entry), "")
	}
	if len(order) > 0 {
		g.checkpointLocked()
	}
}

type addCardRequest struct {
	Loc  int    `json:"loc"`
	Name string `json:"name"`
}

type addPayload struct {
	Cards     []addCardRequest `json:"cards"`
	Requestor string            `json:"requestor"`
}

// Add implements spec §4.7's add: mint each card, call
// InitializeStacks(false), broadcast bulk_add, checkpoint.
func (g *GameHandler) Add(cards []addCardRequest, requestor string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	type addedCard struct {
		ID   int    `json:"id"`
		Loc  int    `json:"loc"`
		Name string `json:"name"`
	}
	var added []addedCard
	var firstErr error
	for _, c := range cards {
		id, err := g.state.AddCard(g.loader, g.finder, c.Loc, c.Name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		added = append(added, addedCard{ID: id, Loc: c.Loc, Name: c.Name})
	}
	g.state.InitializeStacks(false, g.rng)

	if len(added) > 0 {
		g.broadcastLocked(event("bulk_add", map[string]any{"cards": added, "requestor": requestor}), "")
		g.checkpointLocked()
	}
	if len(added) == 0 && firstErr != nil {
		return protoerr.State("add: %v", firstErr)
	}
	return nil
}

// Remove implements spec §4.7's remove: drop each existing card,
// broadcast bulk_remove, checkpoint.
func (g *GameHandler) Remove(ids []int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var removed []int
	for _, id := range ids {
		if _, ok := g.state.Index[id]; !ok {
			continue
		}
		g.state.RemoveCard(id)
		removed = append(removed, id)
	}
	g.state.GC()
	if len(removed) > 0 {
		g.broadcastLocked(event("bulk_remove", removed), "")
		g.checkpointLocked()
	}
}

// StackOp implements spec §4.7/§4.6's stackop.
func (g *GameHandler) StackOp(destType, destKey, opType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	loc := game.Location{Type: game.LocationType(destType), Key: destKey}
	if err := g.state.StackOp(loc, opType, g.rng); err != nil {
		return protoerr.State("stackop: %v", err)
	}
	g.state.Seqno++
	var zStack []int
	if loc.Type == game.Board {
		var key int
		fmt.Sscanf(loc.Key, "%d", &key)
		zStack = g.state.Board[key]
	} else {
		zStack = g.state.Hands[loc.Key]
	}
	g.broadcastLocked(event("stackupdate", map[string]any{
		"dest_type": destType, "dest_key": destKey, "op_type": opType, "z_stack": zStack, "seqno": g.state.Seqno,
	}), "")
	g.checkpointLocked()
	return nil
}

// Broadcast implements spec §4.7's broadcast request.
func (g *GameHandler) Broadcast(senderUUID string, includeSelf bool, payload any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	exclude := senderUUID
	if includeSelf {
		exclude = ""
	}
	g.broadcastLocked(event("broadcast_message", payload), exclude)
}

// Resync implements spec §4.7's resync.
func (g *GameHandler) Resync() (*game.State, int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state, g.state.Seqno
}

// Reset implements spec §4.7's reset: replace the state with a fresh
// one and broadcast reset.
func (g *GameHandler) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = game.New(g.state.DeckName, g.state.ResourcePrefix, g.state.DefaultBackURL, g.state.SourceID)
	g.broadcastLocked(event("reset", g.state), "")
	g.checkpointLocked()
}

// kvopPayload is spec §6's kvop request shape.
type kvopPayload struct {
	Op        string          `json:"op"`
	Namespace string          `json:"namespace"`
	Key       string          `json:"key,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// KVOp implements spec §4.7's kvop against the per-scope ClientDB
// namespace.
func (g *GameHandler) KVOp(ns *namespace.Namespace, p kvopPayload) (any, error) {
	sub := ns.Subspace(p.Namespace)
	switch p.Op {
	case "Put":
		var v any
		if err := json.Unmarshal(p.Value, &v); err != nil {
			return nil, protoerr.Protocol("kvop: invalid value: %v", err)
		}
		if err := sub.Put(p.Key, v); err != nil {
			return nil, protoerr.Fatal(err)
		}
		return "ok", nil
	case "Get":
		var v any
		if err := sub.Get(p.Key, &v); err != nil {
			if err == namespace.ErrNoSuchKey {
				return nil, nil
			}
			return nil, protoerr.Fatal(err)
		}
		return v, nil
	case "Delete":
		if err := sub.Delete(p.Key); err != nil {
			return nil, protoerr.Fatal(err)
		}
		return "ok", nil
	case "List":
		keys, err := sub.List()
		if err != nil {
			return nil, protoerr.Fatal(err)
		}
		return keys, nil
	default:
		return nil, protoerr.Protocol("kvop: unknown op %q", p.Op)
	}
}

// Terminate implements spec §3's game termination: send an error frame
// to every stream, close them, clear presence, remove the persisted
// snapshot.
func (g *GameHandler) Terminate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminated {
		return
	}
	g.terminated = true
	for uuid, e := range g.streams {
		e.stream.Send(map[string]any{"type": "error", "msg": "game terminated"})
		e.stream.Close()
		delete(g.streams, uuid)
	}
	g.snapshot.Delete(g.ID)
	g.emitter.Emit(events.Event{Type: events.EventGameTerminated, Scope: g.Scope, Game: g.ID})
}

func (g *GameHandler) isTerminated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminated
}

func (g *GameHandler) touch() {
	g.mu.Lock()
	g.lastUsed = time.Now()
	g.mu.Unlock()
}
