package main

import (
	"log"
	"net/http"

	"github.com/wlhd7/dz-weekend-overtime/internal/config"
	"github.com/wlhd7/dz-weekend-overtime/internal/database"
	httpapi "github.com/wlhd7/dz-weekend-overtime/internal/http"
	"github.com/wlhd7/dz-weekend-overtime/internal/migrate"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DSN)
	if err != nil {
		log.Fatal(err)
	}

	// schema patching is best effort: an old file should not keep the
	// server from starting
	if err := migrate.Run(db, database.FilePath(cfg.DSN)); err != nil {
		log.Printf("migration incomplete: %v", err)
	}

	addr := ":" + cfg.Port
	log.Println("listen", addr)
	log.Fatal(http.ListenAndServe(addr, httpapi.Router(db)))
}
