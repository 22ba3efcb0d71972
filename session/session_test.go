package session

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/cardtable/events"
	"github.com/tolelom/cardtable/game"
	"github.com/tolelom/cardtable/imagecache"
	"github.com/tolelom/cardtable/internal/testutil"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/search"
)

type fakeStream struct {
	sent []any
}

func (f *fakeStream) Send(frame any) error {
	f.sent = append(f.sent, frame)
	return nil
}
func (f *fakeStream) Close() error { return nil }

type fakePlugin struct{ cards []search.Card }

func (f *fakePlugin) Fetch(term string, exact bool, limit int) ([]search.Card, search.Meta, error) {
	return f.cards, search.Meta{}, nil
}
func (f *fakePlugin) GetBackURL() string                            { return "poker-back.jpg" }
func (f *fakePlugin) Sample() (search.Card, error)                  { return f.cards[0], nil }
func (f *fakePlugin) SampleDeck(term string, n int) ([]search.Deck, error) { return nil, nil }
func (f *fakePlugin) Complete(term string) []string                 { return nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	root := namespace.NewRoot(testutil.NewMemDB())
	cacheMapNS, err := root.Namespace("CacheMap", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	images, err := imagecache.New(t.TempDir(), "http://localhost", "/cache/", cacheMapNS)
	if err != nil {
		t.Fatalf("imagecache.New: %v", err)
	}
	reg := search.NewRegistry()
	reg.Register("poker", &fakePlugin{cards: []search.Card{{Name: "Ace", ImgURL: "/local/ace.jpg"}}})

	qcNS, err := root.Namespace("QueryCache", 0)
	if err != nil {
		t.Fatalf("Namespace: %v", err)
	}
	finder := search.NewQueryCache(reg, images, qcNS)
	loader := game.NewAssetLoader(images, []string{"/local/"}, 64, 64)

	return NewServer(reg, finder, root, events.NewEmitter(), 5, func(string) *game.AssetLoader { return loader })
}

func sendFrame(c *Connection, reqType string, data any) {
	raw, _ := json.Marshal(data)
	c.Dispatch(InFrame{Type: reqType, Data: raw})
}

func TestSetScopeThenConnectReturnsSnapshot(t *testing.T) {
	server := newTestServer(t)
	stream := &fakeStream{}
	c := NewConnection(server, stream)

	sendFrame(c, "set_scope", map[string]any{"scope": "s", "datasource": "poker"})
	if c.tier != tierSpace {
		t.Fatalf("tier after set_scope = %v, want tierSpace", c.tier)
	}

	sendFrame(c, "connect", map[string]any{"gameid": "g1", "user": "alice", "uuid": "u1"})
	if c.tier != tierGame {
		t.Fatalf("tier after connect = %v, want tierGame", c.tier)
	}
	if len(stream.sent) == 0 {
		t.Fatalf("connect: no frames sent")
	}
}

func TestSetScopeUnknownDatasourceRedirects(t *testing.T) {
	server := newTestServer(t)
	stream := &fakeStream{}
	c := NewConnection(server, stream)

	sendFrame(c, "set_scope", map[string]any{"scope": "s", "datasource": "nonexistent"})
	if c.tier != tierInit {
		t.Fatalf("tier after failed set_scope = %v, want tierInit", c.tier)
	}
	if len(stream.sent) != 1 {
		t.Fatalf("want exactly one frame sent, got %d", len(stream.sent))
	}
	frame, ok := stream.sent[0].(map[string]any)
	if !ok || frame["type"] != "redirect" {
		t.Fatalf("expected a redirect frame, got %+v", stream.sent[0])
	}
}

func TestBulkMoveBroadcastsToEveryStreamWithNoReplyToSender(t *testing.T) {
	server := newTestServer(t)

	aliceStream := &fakeStream{}
	alice := NewConnection(server, aliceStream)
	sendFrame(alice, "set_scope", map[string]any{"scope": "s", "datasource": "poker"})
	sendFrame(alice, "connect", map[string]any{"gameid": "g1", "user": "alice", "uuid": "u1"})

	bobStream := &fakeStream{}
	bob := NewConnection(server, bobStream)
	sendFrame(bob, "set_scope", map[string]any{"scope": "s", "datasource": "poker"})
	sendFrame(bob, "connect", map[string]any{"gameid": "g1", "user": "bob", "uuid": "u2"})

	alice.gameHandler.state.Board[100] = []int{3}
	alice.gameHandler.state.Orientations[3] = -1
	alice.gameHandler.state.Reindex()

	aliceStream.sent = nil
	bobStream.sent = nil

	sendFrame(alice, "bulkmove", map[string]any{
		"moves": []map[string]any{{"card": 3, "dest_type": "board", "dest_key": 200, "dest_orient": 1}},
	})

	if len(aliceStream.sent) != 1 {
		t.Fatalf("bulkmove: sender gets the bulkupdate broadcast but no _resp reply, got %+v", aliceStream.sent)
	}
	if len(bobStream.sent) != 1 {
		t.Fatalf("bulkmove: want exactly one bulkupdate frame to bob, got %d", len(bobStream.sent))
	}
}
