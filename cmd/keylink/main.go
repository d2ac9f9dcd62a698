package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/sciknow/keylink/pkg/keylink"
	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/graph"
	"github.com/sciknow/keylink/pkg/keylink/graph/sqlite"
	"github.com/sciknow/keylink/pkg/keylink/hal"
	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

func main() {
	var (
		input     = flag.String("input", "records.json", "JSON array of HAL records")
		cfgPath   = flag.String("config", "", "YAML config file (defaults used when empty)")
		output    = flag.String("out", "keyword_map.csv", "CSV output path")
		graphPath = flag.String("graph", "", "SQLite graph database path (empty disables ingestion)")
		dryRun    = flag.Bool("dry-run", false, "resolve and write CSV only, skip graph ingestion")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	recs, err := hal.Load(*input)
	if err != nil {
		log.Fatalf("input: %v", err)
	}
	log.Printf("loaded %d records from %s", len(recs), *input)

	outFile, err := os.Create(*output)
	if err != nil {
		log.Fatalf("output: %v", err)
	}
	defer outFile.Close()

	rows, err := keylink.NewRowWriter(outFile)
	if err != nil {
		log.Fatalf("output: %v", err)
	}

	ctx := context.Background()

	var store graph.Store
	if *graphPath != "" && !*dryRun {
		store, err = sqlite.Open(ctx, *graphPath)
		if err != nil {
			log.Fatalf("graph: %v", err)
		}
		defer store.Close()
	}

	m := keylink.New(keylink.Options{
		Config: cfg,
		Client: wikidata.NewClient(cfg),
		Store:  store,
		Rows:   rows,
	})

	sum, err := m.Run(ctx, recs)
	sum.Log()
	if err != nil {
		log.Fatalf("run aborted: %v", err)
	}
	log.Printf("wrote %s", *output)
}
