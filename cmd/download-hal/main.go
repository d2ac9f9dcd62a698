package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"
)

// HAL open-archive search endpoint
const apiURL = "https://api.archives-ouvertes.fr/search/"

// fields the pipeline consumes
const fieldList = "docid,halId_s,title_s,abstract_s,keyword_s,en_domainAllCodeLabel_fs"

const pageSize = 100

// halResponse is the JSON envelope of the HAL search API.
type halResponse struct {
	Response struct {
		NumFound int               `json:"numFound"`
		Docs     []json.RawMessage `json:"docs"`
	} `json:"response"`
}

func main() {
	var (
		query  = flag.String("query", "*:*", "HAL search query")
		total  = flag.Int("rows", 500, "maximum number of records to download")
		output = flag.String("out", "records.json", "output JSON file")
	)
	flag.Parse()

	log.Printf("Downloading up to %d records for query %q", *total, *query)

	var docs []json.RawMessage
	for start := 0; start < *total; start += pageSize {
		rows := pageSize
		if remaining := *total - start; remaining < rows {
			rows = remaining
		}

		page, numFound, err := fetchPage(*query, start, rows)
		if err != nil {
			log.Fatalf("fetch page at %d: %v", start, err)
		}
		docs = append(docs, page...)
		log.Printf("fetched %d/%d records", len(docs), min(*total, numFound))

		if start+rows >= numFound || len(page) == 0 {
			break
		}
		// be polite to the public endpoint
		time.Sleep(200 * time.Millisecond)
	}

	outFile, err := os.Create(*output)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer outFile.Close()

	enc := json.NewEncoder(outFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		log.Fatalf("write output: %v", err)
	}

	log.Printf("✓ Saved %d records to %s", len(docs), *output)
}

func fetchPage(query string, start, rows int) ([]json.RawMessage, int, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("wt", "json")
	params.Set("fl", fieldList)
	params.Set("start", fmt.Sprintf("%d", start))
	params.Set("rows", fmt.Sprintf("%d", rows))

	resp, err := http.Get(apiURL + "?" + params.Encode())
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	var parsed halResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, err
	}
	return parsed.Response.Docs, parsed.Response.NumFound, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
