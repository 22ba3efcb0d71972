package session

import (
	"encoding/json"

	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/protoerr"
)

// tier names the three handler classes spec §4.7 defines, in
// escalation order.
type tier int

const (
	tierInit tier = iota
	tierSpace
	tierGame
)

// Connection drives one client stream through the Init -> Space ->
// Game state machine (spec §4.7, §9's "tagged variant... the
// connection loop holds one variant at a time and replaces it on
// set_scope and connect"). One Connection per accepted socket; all
// dispatch on it happens from the single goroutine that owns the
// socket's read loop (spec §5: "one task per connection... dispatch is
// strictly sequential").
type Connection struct {
	server *Server
	stream Stream

	tier   tier
	user   string
	uuid   string
	scope  string
	source string

	space       *SpaceHandler
	gameHandler *GameHandler
	clientDB    *namespace.Namespace
}

// NewConnection creates a Connection in the Init tier.
func NewConnection(server *Server, stream Stream) *Connection {
	return &Connection{server: server, stream: stream, tier: tierInit}
}

// Dispatch handles one inbound frame, sending zero or more outbound
// frames to this connection's stream (and, for mutating game
// requests, to every other stream in the same game) before returning.
func (c *Connection) Dispatch(in InFrame) {
	resp, err := c.route(in)
	if err != nil {
		c.stream.Send(errorFrame(err))
		return
	}
	if resp != nil {
		c.stream.Send(reply(in.Type, resp, in.FutureID))
	}
}

func (c *Connection) route(in InFrame) (any, error) {
	switch in.Type {
	case "ping":
		return "pong", nil
	case "set_scope":
		return nil, c.handleSetScope(in.Data)
	}

	if c.tier == tierInit {
		return nil, protoerr.Protocol("unknown request type %q before set_scope", in.Type)
	}

	switch in.Type {
	case "connect":
		return c.handleConnect(in.Data)
	case "list_games":
		return c.space.ListGames(), nil
	case "end_game":
		return c.handleEndGame(in.Data)
	case "list_scope":
		return c.space.ListGames(), nil
	case "clone_scope":
		return nil, c.handleCloneScope(in.Data)
	case "query":
		return c.handleQuery(in.Data)
	case "bulkquery":
		return c.handleBulkQuery(in.Data)
	case "keepalive":
		if c.gameHandler != nil {
			c.gameHandler.Keepalive(c.uuid)
		}
		return nil, nil
	case "sleep":
		return "ok", nil
	}

	if c.tier != tierGame {
		return nil, protoerr.Protocol("unknown request type %q outside of a game", in.Type)
	}

	switch in.Type {
	case "broadcast":
		return c.handleBroadcast(in.Data)
	case "bulkmove":
		return nil, c.handleBulkMove(in.Data)
	case "end":
		c.gameHandler.Terminate()
		return nil, nil
	case "remove":
		return nil, c.handleRemove(in.Data)
	case "add":
		return nil, c.handleAdd(in.Data)
	case "kvop":
		return c.handleKVOp(in.Data)
	case "stackop":
		return nil, c.handleStackOp(in.Data)
	case "resync":
		st, seqno := c.gameHandler.Resync()
		return []any{st, seqno}, nil
	case "reset":
		c.gameHandler.Reset()
		return nil, nil
	}

	return nil, protoerr.Protocol("unknown request type %q", in.Type)
}

type setScopePayload struct {
	Scope      string `json:"scope"`
	DataSource string `json:"datasource"`
}

func (c *Connection) handleSetScope(data json.RawMessage) error {
	var p setScopePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return protoerr.Protocol("set_scope: %v", err)
	}
	if !c.server.Registry.IsValid(p.DataSource) {
		return protoerr.Redirect("", "unknown datasource %q", p.DataSource)
	}
	space, err := c.server.GetOrCreateSpace(p.Scope, p.DataSource)
	if err != nil {
		return protoerr.Fatal(err)
	}
	c.scope, c.source = p.Scope, p.DataSource
	c.space = space
	clientDB, err := c.server.Root.Namespace("ClientDB", 0)
	if err != nil {
		return protoerr.Fatal(err)
	}
	c.clientDB = clientDB.Subspace(p.Scope).Subspace(p.DataSource)
	c.tier = tierSpace
	return nil
}

type connectPayload struct {
	GameID string `json:"gameid"`
	User   string `json:"user"`
	UUID   string `json:"uuid"`
}

func (c *Connection) handleConnect(data json.RawMessage) (any, error) {
	var p connectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("connect: %v", err)
	}
	gh := c.space.GetOrCreate(p.GameID)
	st, seqno := gh.Connect(c.stream, p.UUID, p.User)
	c.gameHandler = gh
	c.user, c.uuid = p.User, p.UUID
	c.tier = tierGame
	c.space.capacityGC()
	return []any{st, seqno}, nil
}

func (c *Connection) handleEndGame(data json.RawMessage) (any, error) {
	var p struct {
		GameID string `json:"gameid"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("end_game: %v", err)
	}
	c.space.EndGame(p.GameID)
	return "ok", nil
}

func (c *Connection) handleCloneScope(data json.RawMessage) error {
	var p struct {
		DestScope string `json:"dest_scope"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return protoerr.Protocol("clone_scope: %v", err)
	}
	dest, err := c.server.GetOrCreateSpace(p.DestScope, c.source)
	if err != nil {
		return protoerr.Fatal(err)
	}
	if err := c.space.CloneScope(dest); err != nil {
		return protoerr.Fatal(err)
	}
	return nil
}

type queryPayload struct {
	Term         string `json:"term"`
	DataSource   string `json:"datasource"`
	AllowInexact bool   `json:"allow_inexact"`
}

func (c *Connection) handleQuery(data json.RawMessage) (any, error) {
	var p queryPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("query: %v", err)
	}
	cards, meta, err := c.space.Find(p.DataSource, p.Term, !p.AllowInexact, 0)
	if err != nil {
		return nil, err
	}
	return map[string]any{"stream": cards, "meta": meta, "req": p.Term}, nil
}

func (c *Connection) handleBulkQuery(data json.RawMessage) (any, error) {
	var p struct {
		Terms      []string `json:"terms"`
		DataSource string   `json:"datasource"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("bulkquery: %v", err)
	}
	out := make(map[string]any, len(p.Terms))
	for _, term := range p.Terms {
		cards, _, err := c.space.Find(p.DataSource, term, true, 1)
		if err != nil || len(cards) == 0 {
			out[term] = nil
			continue
		}
		out[term] = cards[0]
	}
	return out, nil
}

func (c *Connection) handleBroadcast(data json.RawMessage) (any, error) {
	var p struct {
		IncludeSelf bool `json:"include_self"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("broadcast: %v", err)
	}
	var raw any
	json.Unmarshal(data, &raw)
	c.gameHandler.Broadcast(c.uuid, p.IncludeSelf, raw)
	return "ok", nil
}

func (c *Connection) handleBulkMove(data json.RawMessage) error {
	var p bulkmovePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return protoerr.Protocol("bulkmove: %v", err)
	}
	c.gameHandler.BulkMove(p.Moves)
	return nil
}

func (c *Connection) handleRemove(data json.RawMessage) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return protoerr.Protocol("remove: %v", err)
	}
	c.gameHandler.Remove(ids)
	return nil
}

func (c *Connection) handleAdd(data json.RawMessage) error {
	var p addPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return protoerr.Protocol("add: %v", err)
	}
	return c.gameHandler.Add(p.Cards, p.Requestor)
}

func (c *Connection) handleKVOp(data json.RawMessage) (any, error) {
	var p kvopPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, protoerr.Protocol("kvop: %v", err)
	}
	resp, err := c.gameHandler.KVOp(c.clientDB, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"req": p, "resp": resp}, nil
}

func (c *Connection) handleStackOp(data json.RawMessage) error {
	var p struct {
		DestType string `json:"dest_type"`
		DestKey  any    `json:"dest_key"`
		OpType   string `json:"op_type"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return protoerr.Protocol("stackop: %v", err)
	}
	return c.gameHandler.StackOp(p.DestType, destKeyString(p.DestKey), p.OpType)
}

// Close releases this connection's game presence, if any, without
// touching the underlying stream (the caller's read loop owns that).
func (c *Connection) Close() {
	if c.gameHandler != nil {
		c.gameHandler.Disconnect(c.uuid)
	}
}
