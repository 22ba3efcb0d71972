package session

import (
	"fmt"
	"sync"

	"github.com/tolelom/cardtable/events"
	"github.com/tolelom/cardtable/game"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/search"
)

// Server owns every long-lived shared component a Connection's handler
// tiers dispatch against: the plugin/query-cache pipeline, the
// namespace root, one AssetLoader per sourceid, and the registry of
// live Spaces.
type Server struct {
	Registry *search.Registry
	Finder   *search.QueryCache
	Root     *namespace.Root
	Emitter  *events.Emitter
	MaxGames int

	loaderFor func(sourceID string) *game.AssetLoader

	mu     sync.Mutex
	spaces map[spaceKey]*SpaceHandler
}

type spaceKey struct{ scope, source string }

// NewServer builds a Server. loaderFor resolves the shared AssetLoader
// for a given sourceid (every plugin shares one AssetLoader backed by
// the same imagecache.Cache, so loaderFor is typically a closure
// returning the same instance regardless of sourceID).
func NewServer(registry *search.Registry, finder *search.QueryCache, root *namespace.Root, emitter *events.Emitter, maxGames int, loaderFor func(sourceID string) *game.AssetLoader) *Server {
	return &Server{
		Registry: registry, Finder: finder, Root: root, Emitter: emitter, MaxGames: maxGames,
		loaderFor: loaderFor, spaces: make(map[spaceKey]*SpaceHandler),
	}
}

// GetOrCreateSpace returns the SpaceHandler for (scope, source),
// creating (and, per spec §4.7, resurrecting its persisted games) one
// if it does not exist.
func (s *Server) GetOrCreateSpace(scope, source string) (*SpaceHandler, error) {
	key := spaceKey{scope, source}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok := s.spaces[key]; ok {
		return sh, nil
	}

	gamesRoot, err := s.Root.Namespace("Games", 0)
	if err != nil {
		return nil, fmt.Errorf("session: open Games namespace: %w", err)
	}
	gamesNS := gamesRoot.Subspace(scope).Subspace(source)

	sh, err := NewSpaceHandler(scope, source, s.MaxGames, gamesNS, s.Finder, s.loaderFor(source), s.Emitter)
	if err != nil {
		return nil, err
	}
	s.spaces[key] = sh
	return sh, nil
}
