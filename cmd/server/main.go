// Command server starts a card-table server.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolelom/cardtable/catalog"
	"github.com/tolelom/cardtable/config"
	"github.com/tolelom/cardtable/events"
	"github.com/tolelom/cardtable/game"
	"github.com/tolelom/cardtable/imagecache"
	"github.com/tolelom/cardtable/namespace"
	"github.com/tolelom/cardtable/search"
	"github.com/tolelom/cardtable/search/plugins"
	"github.com/tolelom/cardtable/session"
	"github.com/tolelom/cardtable/storage"
	"github.com/tolelom/cardtable/transport"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	root := namespace.NewRoot(db)
	emitter := events.NewEmitter()

	cacheMapNS, err := root.Namespace("CacheMap", 0)
	if err != nil {
		log.Fatalf("namespace CacheMap: %v", err)
	}
	images, err := imagecache.New(cfg.CacheDir, cfg.LocalServingAddress, cfg.CacheServingPrefix, cacheMapNS)
	if err != nil {
		log.Fatalf("imagecache: %v", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		log.Fatalf("plugin registry: %v", err)
	}

	queryCacheNS, err := root.Namespace("QueryCache", 0)
	if err != nil {
		log.Fatalf("namespace QueryCache: %v", err)
	}
	finder := search.NewQueryCache(registry, images, queryCacheNS)

	loader := game.NewAssetLoader(images, []string{cfg.CacheDir, cfg.LocalServingAddress, cfg.CacheServingPrefix, "/"},
		cfg.SmallImageWidth, cfg.SmallImageHeight)

	srv := session.NewServer(registry, finder, root, emitter, cfg.MaxGamesPerScope, func(string) *game.AssetLoader { return loader })

	if cfg.EnableLearner {
		go runLearner(registry, finder, time.Duration(cfg.LearnerIntervalSeconds)*time.Second)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.CacheServingPrefix, http.StripPrefix(cfg.CacheServingPrefix, http.FileServer(http.Dir(cfg.CacheDir))))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade: %v", err)
			return
		}
		stream := transport.NewWSStream(conn)
		c := session.NewConnection(srv, stream)
		defer c.Close()
		transport.Serve(conn, c)
	})

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down...")
	httpServer.Close()
	log.Println("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// buildRegistry wires the three plugin sources whose configuration is
// present: a poker deck, a catalog-ranked local image directory, and the
// magiccards.info remote scrape, each registered under the source name
// clients address them by.
func buildRegistry(cfg *config.Config) (*search.Registry, error) {
	registry := search.NewRegistry()

	if _, err := os.Stat(cfg.PokerAssetsDir); err == nil {
		poker, err := plugins.NewPokerCardsPlugin(cfg.PokerAssetsDir, "poker-back.png")
		if err != nil {
			return nil, err
		}
		registry.Register("poker", poker)
	}

	if cfg.CatalogCSVPath != "" {
		if _, err := os.Stat(cfg.CatalogCSVPath); err == nil {
			cat, err := catalog.Load(cfg.CatalogCSVPath)
			if err != nil {
				return nil, err
			}
			if _, err := os.Stat(cfg.LocalDBDir); err == nil {
				localdb, err := plugins.NewLocalDBPlugin(cfg.LocalDBDir, cat, "localdb-back.jpg")
				if err != nil {
					return nil, err
				}
				registry.Register("localdb", localdb)
			}
		}
	}

	if cfg.MagicCardsInfoBaseURL != "" {
		registry.Register("magiccards.info", plugins.NewMagicCardsInfoPlugin(cfg.MagicCardsInfoBaseURL, "magic-back.jpg"))
	}

	return registry, nil
}

// runLearner is the optional background task spec §9 calls for: it
// synthesizes random queries against every registered source to warm
// the query and image caches ahead of real traffic.
func runLearner(registry *search.Registry, finder *search.QueryCache, interval time.Duration) {
	sampleTerms := []string{"a", "e", "i", "o", "u", "the"}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for _, source := range registry.AllSources() {
			for _, term := range sampleTerms {
				if _, _, err := finder.Find(source, term, false, 5); err != nil {
					log.Printf("learner: %s %q: %v", source, term, err)
				}
			}
		}
	}
}
