package keylink

import (
	"context"
	"crypto/rand"
	"log"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/sciknow/keylink/pkg/keylink/config"
	"github.com/sciknow/keylink/pkg/keylink/graph"
	"github.com/sciknow/keylink/pkg/keylink/hal"
	"github.com/sciknow/keylink/pkg/keylink/hierarchy"
	"github.com/sciknow/keylink/pkg/keylink/resolve"
	"github.com/sciknow/keylink/pkg/keylink/score"
	"github.com/sciknow/keylink/pkg/keylink/typefilter"
	"github.com/sciknow/keylink/pkg/keylink/wikidata"
)

// Client is the slice of the knowledge-base client the mapper needs.
// Satisfied by the wikidata client.
type Client interface {
	Search(ctx context.Context, term, language string) ([]wikidata.RawHit, error)
	SearchLabelOnly(ctx context.Context, term, language string) ([]wikidata.RawHit, error)
	GetEntities(ctx context.Context, ids []string) (map[string]wikidata.Entity, error)
	ResolveLabels(ctx context.Context, labels []string, language string) map[string]struct{}
	Labels(ctx context.Context, ids []string) (map[string]string, error)
}

// Options configures a Mapper instance.
type Options struct {
	Config config.Config
	Client Client

	// Store receives graph upserts; nil disables ingestion.
	Store graph.Store
	// Rows receives CSV output; nil disables row emission.
	Rows *RowWriter
}

// Mapper is the pipeline facade: it walks document records, resolves
// each keyword to an entity, expands its ancestry and fans the outcome
// out to CSV rows and graph upserts.
type Mapper struct {
	cfg     config.Config
	client  Client
	store   graph.Store
	rows    *RowWriter
	entropy *ulid.MonotonicEntropy
}

// New creates a Mapper with the given dependencies.
func New(opts Options) *Mapper {
	return &Mapper{
		cfg:     opts.Config,
		client:  opts.Client,
		store:   opts.Store,
		rows:    opts.Rows,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Summary is the end-of-run accounting.
type Summary struct {
	RunID           string
	Documents       int
	Keywords        int
	Resolved        int
	None            int
	Blocked         int
	Disambiguations int
	StoreErrors     int
}

// Log prints the summary through the standard logger.
func (s Summary) Log() {
	log.Printf("run %s: %d documents, %d keywords, %d resolved, %d none, %d blocked candidates, %d disambiguation pages, %d store errors",
		s.RunID, s.Documents, s.Keywords, s.Resolved, s.None, s.Blocked, s.Disambiguations, s.StoreErrors)
}

// Run processes every record. Per-keyword failures degrade to "none"
// rows; only output I/O failures abort the run. Rows written so far are
// preserved on abort.
func (m *Mapper) Run(ctx context.Context, recs []hal.Record) (Summary, error) {
	sum := Summary{RunID: ulid.MustNew(ulid.Now(), m.entropy).String()}

	filter := typefilter.Build(ctx, m.client, m.cfg)
	domains := typefilter.BuildDomains(ctx, m.client, m.cfg)
	walker := hierarchy.NewWalker(m.client, m.cfg.MaxDepth, m.cfg.MaxNodes)

	engine := score.NewEngine(m.cfg)
	if m.cfg.DebugScores {
		sink, err := score.NewCSVSink(m.cfg.DebugScoresPath)
		if err != nil {
			log.Printf("keylink: debug scores disabled: %v", err)
		} else {
			engine.SetDebugSink(sink)
			defer sink.Close()
		}
	}

	sel := resolve.NewSelector(m.cfg, m.client, filter, engine)
	sel.SetAncestorChecker(walker)

	seen := make(map[[2]string]struct{})
	for _, rec := range recs {
		sum.Documents++
		docCtx := rec.Context()
		buckets := matchBuckets(m.cfg.Domains, rec.DomainLabels)
		dom := typefilter.MergeDomains(domains, buckets)

		for _, kw := range rec.Keywords {
			pair := [2]string{rec.DocID, kw}
			if _, dup := seen[pair]; dup {
				continue
			}
			seen[pair] = struct{}{}
			sum.Keywords++

			res := sel.Resolve(ctx, kw, docCtx, dom)
			sum.Blocked += res.Blocked
			if res.DisambiguationSeen {
				sum.Disambiguations++
			}

			if !res.Resolved() {
				sum.None++
				if err := m.emit(rec, buckets, res, nil, nil); err != nil {
					return sum, err
				}
				continue
			}
			sum.Resolved++

			paths, err := walker.Expand(ctx, res.EntityID)
			if err != nil {
				log.Printf("keylink: ancestry for %s: %v", res.EntityID, err)
				paths = nil
			}
			labels := m.lookupLabels(ctx, res, paths)

			if m.store != nil {
				m.ingest(ctx, &sum, rec, res, paths, labels)
			}
			if err := m.emit(rec, buckets, res, paths, labels); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// lookupLabels fetches display labels for the winner's types and every
// ancestry node. Best-effort: a failed lookup falls back to raw ids.
func (m *Mapper) lookupLabels(ctx context.Context, res resolve.Result, paths []hierarchy.Path) map[string]string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, t := range res.TypeIDs {
		add(t)
	}
	for _, p := range paths {
		for _, id := range p {
			add(id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	labels, err := m.client.Labels(ctx, ids)
	if err != nil {
		log.Printf("keylink: label lookup: %v", err)
		return nil
	}
	return labels
}

// ingest upserts the winner, its type and ancestry edges and the
// document triangle. Write failures are logged and counted, never
// fatal: idempotent upserts make a rerun self-healing.
func (m *Mapper) ingest(ctx context.Context, sum *Summary, rec hal.Record, res resolve.Result, paths []hierarchy.Path, labels map[string]string) {
	put := func(err error) {
		if err != nil {
			log.Printf("keylink: graph write for %s: %v", res.EntityID, err)
			sum.StoreErrors++
		}
	}

	put(m.store.UpsertEntity(ctx, graph.EntityNode{
		ID: res.EntityID, Label: res.EntityLabel, BNFID: res.BNFID, RunID: sum.RunID,
	}))
	for _, t := range res.TypeIDs {
		put(m.store.UpsertEntity(ctx, graph.EntityNode{ID: t, Label: labelOr(labels, t), RunID: sum.RunID}))
		put(m.store.UpsertInstanceOf(ctx, res.EntityID, t))
	}
	for _, p := range paths {
		prev := res.EntityID
		for _, anc := range p {
			put(m.store.UpsertEntity(ctx, graph.EntityNode{ID: anc, Label: labelOr(labels, anc), RunID: sum.RunID}))
			put(m.store.UpsertSubclassOf(ctx, prev, anc))
			prev = anc
		}
	}
	put(m.store.UpsertDocumentKeyword(ctx, graph.Triangle{
		DocID: rec.DocID, Keyword: res.Keyword, EntityID: res.EntityID,
		Stage: res.Stage, Score: res.Score, RunID: sum.RunID,
	}))
}

// emit writes one row per ancestry path, or a single empty-path row.
func (m *Mapper) emit(rec hal.Record, buckets []string, res resolve.Result, paths []hierarchy.Path, labels map[string]string) error {
	if m.rows == nil {
		return nil
	}

	typeLabels := make([]string, 0, len(res.TypeIDs))
	for _, t := range res.TypeIDs {
		typeLabels = append(typeLabels, labelOr(labels, t))
	}

	base := Row{
		DocID:          rec.DocID,
		Title:          rec.Title,
		Keyword:        res.Keyword,
		EntityLabel:    res.EntityLabel,
		EntityID:       res.EntityID,
		BNFID:          res.BNFID,
		Stage:          res.Stage,
		Disambiguation: res.DisambiguationSeen,
		Similarity:     res.Similarity,
		Score:          res.Score,
		TypeIDs:        strings.Join(sortedCopy(res.TypeIDs), ";"),
		TypeLabels:     strings.Join(typeLabels, ";"),
		Domains:        strings.Join(buckets, "|"),
		DomainHits:     strings.Join(res.DomainHits, ";"),
	}

	if len(paths) == 0 {
		return m.rows.Write(base)
	}
	for _, p := range paths {
		parts := make([]string, 0, len(p))
		for _, id := range p {
			parts = append(parts, labelOr(labels, id))
		}
		row := base
		row.AncestryPath = strings.Join(parts, " > ")
		if err := m.rows.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// matchBuckets assigns a document to every configured domain bucket
// whose name appears in one of the document's domain labels.
func matchBuckets(domains map[string]config.DomainLabels, labels []string) []string {
	var out []string
	for bucket := range domains {
		b := strings.ToLower(bucket)
		for _, l := range labels {
			if strings.Contains(strings.ToLower(l), b) {
				out = append(out, bucket)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func labelOr(labels map[string]string, id string) string {
	if l, ok := labels[id]; ok && l != "" {
		return l
	}
	return id
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
