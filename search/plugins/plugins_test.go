package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tolelom/cardtable/catalog"
)

func TestPokerCardsPluginNamesAndFiltersCards(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Ah.png", "Ts.png", "Joker.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	p, err := NewPokerCardsPlugin(dir, "back.png")
	if err != nil {
		t.Fatalf("NewPokerCardsPlugin: %v", err)
	}

	cards, _, err := p.Fetch("ace", false, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(cards) != 1 || cards[0].Name != "Ace of Hearts" {
		t.Fatalf("Fetch(ace): got %+v", cards)
	}

	exact, _, err := p.Fetch("Ace of Hearts", true, 0)
	if err != nil || len(exact) != 1 {
		t.Fatalf("Fetch(exact): got %+v, err %v", exact, err)
	}

	if p.GetBackURL() != "back.png" {
		t.Fatalf("GetBackURL: got %q", p.GetBackURL())
	}
}

const deckCSV = `name,slug,cost,colors,tokens,searchtext,searchtype,goodquality
Lightning Bolt,lightningbolt,1,red,burn,deal 3 damage to any target,instant,1
`

func TestLocalDBPluginJoinsImagesWithCatalog(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Lightning Bolt.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cat, err := catalog.Load(writeTempCSV(t, deckCSV))
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	p, err := NewLocalDBPlugin(dir, cat, "back.jpg")
	if err != nil {
		t.Fatalf("NewLocalDBPlugin: %v", err)
	}

	cards, _, err := p.Fetch("lightning bolt", false, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(cards) != 1 || !strings.Contains(cards[0].ImgURL, "Lightning Bolt.jpg") {
		t.Fatalf("Fetch: got %+v", cards)
	}

	exact, _, err := p.Fetch("Lightning Bolt", true, 0)
	if err != nil || len(exact) != 1 {
		t.Fatalf("Fetch(exact): got %+v, err %v", exact, err)
	}
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
