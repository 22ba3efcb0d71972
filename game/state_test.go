package game

import (
	"math/rand"
	"testing"
)

func newTestState() *State {
	s := New("poker", "/prefix/", "back.jpg", "poker")
	s.Board[100] = []int{1, 2, 3}
	s.Orientations[1] = -1
	s.Orientations[2] = -1
	s.Orientations[3] = -1
	s.URLs[1], s.URLs[2], s.URLs[3] = "a", "b", "c"
	s.URLsSmall[1], s.URLsSmall[2], s.URLsSmall[3] = "a", "b", "c"
	s.HighestID = 3
	s.Reindex()
	return s
}

func TestMoveCardToNewLocationAppendsAndUpdatesIndex(t *testing.T) {
	s := newTestState()
	src, err := s.MoveCard(2, Board, "200", 1)
	if err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if src != BoardLocation(100) {
		t.Fatalf("MoveCard: returned src %+v, want board 100", src)
	}
	if got := s.Board[100]; len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("Board[100] after move: %v", got)
	}
	if got := s.Board[200]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("Board[200] after move: %v", got)
	}
	if s.Index[2] != BoardLocation(200) {
		t.Fatalf("Index[2] = %+v, want board 200", s.Index[2])
	}
	if s.Orientations[2] != 1 {
		t.Fatalf("Orientations[2] = %d, want 1", s.Orientations[2])
	}
}

func TestMoveCardSamePlaceSameOrientIsZBumpNoop(t *testing.T) {
	s := newTestState()
	before := append([]int(nil), s.Board[100]...)
	if _, err := s.MoveCard(1, Board, "100", -1); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	after := s.Board[100]
	if len(before) != len(after) {
		t.Fatalf("stack length changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("stack order changed on a same-place same-orient move: %v -> %v", before, after)
		}
	}
}

func TestMoveCardLastCardLeavingDeletesLocation(t *testing.T) {
	s := New("poker", "/prefix/", "back.jpg", "poker")
	s.Board[100] = []int{9}
	s.Orientations[9] = -1
	s.Reindex()

	if _, err := s.MoveCard(9, Board, "200", -1); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}
	if _, exists := s.Board[100]; exists {
		t.Fatalf("Board[100] should have been deleted after its last card left")
	}
}

func TestStackOpReverseFlipsOrderAndOrientation(t *testing.T) {
	s := newTestState()
	s.Orientations[1], s.Orientations[2], s.Orientations[3] = 1, 2, 3
	if err := s.StackOp(BoardLocation(100), "reverse", rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("StackOp: %v", err)
	}
	if got := s.Board[100]; len(got) != 3 || got[0] != 3 || got[2] != 1 {
		t.Fatalf("Board[100] after reverse: %v", got)
	}
	if s.Orientations[1] != -1 || s.Orientations[2] != -2 || s.Orientations[3] != -3 {
		t.Fatalf("orientations after reverse: %v", s.Orientations)
	}
}

func TestStackOpShuffleResetsOrientationToTopAndKeepsMultiset(t *testing.T) {
	s := newTestState()
	s.Orientations[1], s.Orientations[2], s.Orientations[3] = 1, 2, 4
	if err := s.StackOp(BoardLocation(100), "shuffle", rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("StackOp: %v", err)
	}
	for _, c := range []int{1, 2, 3} {
		if s.Orientations[c] != 4 {
			t.Fatalf("orientation[%d] = %d, want 4 (pre-shuffle top)", c, s.Orientations[c])
		}
	}
	seen := map[int]bool{}
	for _, c := range s.Board[100] {
		seen[c] = true
	}
	if len(seen) != 3 {
		t.Fatalf("shuffle changed the card multiset: %v", s.Board[100])
	}
}

func TestRemoveCardClearsIndexAndStack(t *testing.T) {
	s := newTestState()
	s.RemoveCard(2)
	if _, ok := s.Index[2]; ok {
		t.Fatalf("Index still has removed card 2")
	}
	for _, c := range s.Board[100] {
		if c == 2 {
			t.Fatalf("Board[100] still has removed card 2: %v", s.Board[100])
		}
	}
}

func TestGCDropsAttributesForCardsNotInIndex(t *testing.T) {
	s := newTestState()
	s.RemoveCard(2)
	s.GC()
	if _, ok := s.Orientations[2]; ok {
		t.Fatalf("GC did not drop Orientations[2]")
	}
	if _, ok := s.URLs[2]; ok {
		t.Fatalf("GC did not drop URLs[2]")
	}
}

func TestReindexRebuildsFromBoardAndHands(t *testing.T) {
	s := New("poker", "/prefix/", "back.jpg", "poker")
	s.Board[1] = []int{10, 11}
	s.Hands["alice"] = []int{12}
	s.Reindex()

	if s.Index[10] != BoardLocation(1) || s.Index[11] != BoardLocation(1) {
		t.Fatalf("Reindex: board cards misindexed: %v", s.Index)
	}
	if s.Index[12] != HandLocation("alice") {
		t.Fatalf("Reindex: hand card misindexed: %v", s.Index)
	}
}
