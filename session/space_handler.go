package session

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tolelom/cardtable/events"
	"github.com/tolelom/cardtable/game"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/protoerr"
	"github.com/tolelom/cardtable/search"
)

// DefaultMaxGames is spec §3/§4.7's default per-Scope game cap.
const DefaultMaxGames = 5

// SpaceHandler is spec §4.7's SpaceHandler: owns every GameHandler for
// one (scope, sourceid) pair, enforcing the capacity cap.
type SpaceHandler struct {
	Scope    string
	Source   string
	maxGames int

	mu    sync.Mutex
	games map[string]*GameHandler
	// recency tracks per-game touch order; Add on access bumps a game
	// to most-recently-used, giving capacityGC the "then
	// least-recently-used" half of spec §4.7's eviction ranking without
	// hand-rolling an LRU list.
	recency *lru.Cache[string, struct{}]

	gamesNS  *namespace.Namespace
	finder   *search.QueryCache
	loader   *game.AssetLoader
	emitter  *events.Emitter
}

// NewSpaceHandler builds a SpaceHandler and resurrects every game
// persisted in the Games namespace under this Scope (spec §4.7's
// SpaceHandler construction step).
func NewSpaceHandler(scope, source string, maxGames int, gamesNS *namespace.Namespace, finder *search.QueryCache, loader *game.AssetLoader, emitter *events.Emitter) (*SpaceHandler, error) {
	if maxGames <= 0 {
		maxGames = DefaultMaxGames
	}
	recency, err := lru.New[string, struct{}](maxGames * 4)
	if err != nil {
		return nil, err
	}
	sh := &SpaceHandler{
		Scope: scope, Source: source, maxGames: maxGames,
		games: make(map[string]*GameHandler), recency: recency,
		gamesNS: gamesNS, finder: finder, loader: loader, emitter: emitter,
	}

	err = namespace.ForEach(gamesNS, func() *gameSnapshotRecord { return &gameSnapshotRecord{} },
		func(gameID string, rec *gameSnapshotRecord) error {
			gh := restoreGameHandler(gameID, scope, source, *rec, loader, finder, gamesNS, emitter)
			sh.games[gameID] = gh
			sh.recency.Add(gameID, struct{}{})
			return nil
		})
	if err != nil {
		return nil, err
	}
	return sh, nil
}

// GetOrCreate returns the GameHandler for gameID, creating a fresh
// game.State-backed one if it does not exist yet.
func (sh *SpaceHandler) GetOrCreate(gameID string) *GameHandler {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if gh, ok := sh.games[gameID]; ok && !gh.isTerminated() {
		sh.recency.Add(gameID, struct{}{})
		return gh
	}
	st := game.New("", "", "", sh.Source)
	gh := newGameHandler(gameID, sh.Scope, sh.Source, st, sh.loader, sh.finder, sh.gamesNS, sh.emitter)
	sh.games[gameID] = gh
	sh.recency.Add(gameID, struct{}{})
	sh.emitter.Emit(events.Event{Type: events.EventGameCreated, Scope: sh.Scope, Game: gameID})
	return gh
}

// EndGame terminates gameID if present, then runs capacity GC.
func (sh *SpaceHandler) EndGame(gameID string) {
	sh.mu.Lock()
	gh, ok := sh.games[gameID]
	sh.mu.Unlock()
	if ok {
		gh.Terminate()
	}
	sh.capacityGC()
}

// listEntry is one row of a list_games reply.
type listEntry struct {
	GameID   string `json:"gameid"`
	Presence int    `json:"presence"`
}

// ListGames returns games sorted by (has_presence desc, last_used
// desc), per spec §4.7.
func (sh *SpaceHandler) ListGames() []listEntry {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	type ranked struct {
		gh       *GameHandler
		presence int
	}
	var all []ranked
	for _, gh := range sh.games {
		if gh.isTerminated() {
			continue
		}
		all = append(all, ranked{gh: gh, presence: gh.PresenceCount()})
	}
	sort.Slice(all, func(i, j int) bool {
		if (all[i].presence > 0) != (all[j].presence > 0) {
			return all[i].presence > 0
		}
		return all[i].gh.lastUsed.After(all[j].gh.lastUsed)
	})
	out := make([]listEntry, len(all))
	for i, r := range all {
		out[i] = listEntry{GameID: r.gh.ID, Presence: r.presence}
	}
	return out
}

// capacityGC evicts games beyond sh.maxGames, preferring zero-presence
// games first, then least-recently-used (spec §4.7/§8).
func (sh *SpaceHandler) capacityGC() {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	for gameID, gh := range sh.games {
		if gh.isTerminated() {
			delete(sh.games, gameID)
			sh.recency.Remove(gameID)
		}
	}

	for len(sh.games) > sh.maxGames {
		victim := sh.pickEvictionVictimLocked()
		if victim == "" {
			return
		}
		gh := sh.games[victim]
		delete(sh.games, victim)
		sh.recency.Remove(victim)
		gh.Terminate()
	}
}

func (sh *SpaceHandler) pickEvictionVictimLocked() string {
	lruOrder := sh.recency.Keys() // least-recently-used first

	for _, gameID := range lruOrder {
		if gh, ok := sh.games[gameID]; ok && gh.PresenceCount() == 0 {
			return gameID
		}
	}
	for _, gameID := range lruOrder {
		if _, ok := sh.games[gameID]; ok {
			return gameID
		}
	}
	return ""
}

// CloneScope copies every persisted game snapshot from this Scope into
// dest, a supplementary feature beyond the distilled spec (original
// Kansas exposes a "clone" admin action); both scopes keep independent
// copies thereafter.
func (sh *SpaceHandler) CloneScope(dest *SpaceHandler) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for gameID, gh := range sh.games {
		st, seqno := gh.Snapshot()
		clone := *st
		if err := dest.gamesNS.Put(gameID, gameSnapshotRecord{State: clone, Seqno: seqno}); err != nil {
			return err
		}
	}
	return nil
}

// Find forwards a query/bulkquery request to the shared QueryCache,
// resolving unknown datasources as a ProtocolError (not the
// set_scope-specific Redirect) since query can run mid-game.
func (sh *SpaceHandler) Find(datasource, term string, exact bool, limit int) ([]search.Card, search.Meta, error) {
	if datasource == "" {
		datasource = sh.Source
	}
	if !sh.finder.IsValid(datasource) {
		return nil, search.Meta{}, protoerr.Protocol("unknown datasource %q", datasource)
	}
	return sh.finder.Find(datasource, term, exact, limit)
}
