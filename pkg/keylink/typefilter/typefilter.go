package typefilter

import (
	"context"
	"log"

	"github.com/sciknow/keylink/pkg/keylink/config"
)

// LabelResolver turns human-readable type labels into stable entity ids.
// Satisfied by the wikidata client.
type LabelResolver interface {
	ResolveLabels(ctx context.Context, labels []string, language string) map[string]struct{}
}

// AncestorChecker reports whether an entity's subclass-of ancestry
// reaches any of the given root ids. Satisfied by the hierarchy walker.
type AncestorChecker interface {
	ReachesAnyRoot(ctx context.Context, id string, roots map[string]struct{}) (bool, error)
}

// Classification is the verdict for one candidate's instance-of set.
// Blocked always wins over any bonus.
type Classification struct {
	Blocked bool
	Bonus   float64
}

// DomainConfig is a resolved per-domain whitelist plus ancestry roots.
type DomainConfig struct {
	Whitelist map[string]struct{}
	Roots     map[string]struct{}
}

// Filter classifies candidates by their declared instance-of types.
// Immutable after Build; one instance per run.
type Filter struct {
	disallowed map[string]struct{}
	preferred  map[string]struct{}

	enableBlock bool
	enableBonus bool

	typeBonus       float64
	domainTypeBonus float64
	domainRootBonus float64

	disambiguationID string
}

// Build resolves the configured label lists to id sets once at startup.
// Labels that resolve to nothing are silently dropped; an empty
// disallowed set degrades to "no blocking" rather than failing the run.
func Build(ctx context.Context, resolver LabelResolver, cfg config.Config) *Filter {
	lang := "en"
	if len(cfg.Languages) > 0 {
		lang = cfg.Languages[0]
	}

	dis := resolver.ResolveLabels(ctx, cfg.DisallowedTypeLabels, lang)
	pref := resolver.ResolveLabels(ctx, cfg.PreferredTypeLabels, lang)

	if cfg.EnableTypeBlock && len(cfg.DisallowedTypeLabels) > 0 && len(dis) == 0 {
		log.Printf("typefilter: no disallowed type labels resolved; blocking disabled for this run")
	}

	return &Filter{
		disallowed:       dis,
		preferred:        pref,
		enableBlock:      cfg.EnableTypeBlock,
		enableBonus:      cfg.EnablePreferredBonus,
		typeBonus:        cfg.TypeBonus,
		domainTypeBonus:  cfg.DomainTypeBonus,
		domainRootBonus:  cfg.DomainRootBonus,
		disambiguationID: cfg.DisambiguationTypeID,
	}
}

// BuildDomains resolves every configured domain bucket's label lists.
func BuildDomains(ctx context.Context, resolver LabelResolver, cfg config.Config) map[string]DomainConfig {
	lang := "en"
	if len(cfg.Languages) > 0 {
		lang = cfg.Languages[0]
	}
	out := make(map[string]DomainConfig, len(cfg.Domains))
	for bucket, labels := range cfg.Domains {
		out[bucket] = DomainConfig{
			Whitelist: resolver.ResolveLabels(ctx, labels.TypeWhitelist, lang),
			Roots:     resolver.ResolveLabels(ctx, labels.RootLabels, lang),
		}
	}
	return out
}

// MergeDomains unions the configs of the buckets a document belongs to.
func MergeDomains(all map[string]DomainConfig, buckets []string) DomainConfig {
	merged := DomainConfig{
		Whitelist: make(map[string]struct{}),
		Roots:     make(map[string]struct{}),
	}
	for _, b := range buckets {
		cfg, ok := all[b]
		if !ok {
			continue
		}
		for id := range cfg.Whitelist {
			merged.Whitelist[id] = struct{}{}
		}
		for id := range cfg.Roots {
			merged.Roots[id] = struct{}{}
		}
	}
	return merged
}

// Empty reports whether the domain config carries no ids at all.
func (d DomainConfig) Empty() bool {
	return len(d.Whitelist) == 0 && len(d.Roots) == 0
}

// Classify blocks a candidate whose types intersect the disallowed set
// and otherwise grants the preferred-type bonus on intersection.
func (f *Filter) Classify(typeIDs []string) Classification {
	if f.enableBlock {
		for _, id := range typeIDs {
			if _, bad := f.disallowed[id]; bad {
				return Classification{Blocked: true}
			}
		}
	}
	if f.enableBonus {
		for _, id := range typeIDs {
			if _, good := f.preferred[id]; good {
				return Classification{Bonus: f.typeBonus}
			}
		}
	}
	return Classification{}
}

// IsDisambiguationType reports whether the reserved disambiguation-page
// type id appears among the given types.
func (f *Filter) IsDisambiguationType(typeIDs []string) bool {
	for _, id := range typeIDs {
		if id == f.disambiguationID {
			return true
		}
	}
	return false
}

// DomainBonus grants a fixed increment when the candidate's types
// intersect the domain whitelist, and a second one when its ancestry
// reaches a configured domain root. Ancestry errors are best-effort.
func (f *Filter) DomainBonus(ctx context.Context, candID string, typeIDs []string, dom DomainConfig, anc AncestorChecker) (float64, []string) {
	if dom.Empty() {
		return 0, nil
	}
	var bonus float64
	var hits []string
	for _, id := range typeIDs {
		if _, ok := dom.Whitelist[id]; ok {
			if len(hits) == 0 {
				bonus += f.domainTypeBonus
			}
			hits = append(hits, id)
		}
	}
	if anc != nil && len(dom.Roots) > 0 {
		reached, err := anc.ReachesAnyRoot(ctx, candID, dom.Roots)
		if err == nil && reached {
			bonus += f.domainRootBonus
			hits = append(hits, "subclass→root")
		}
	}
	return bonus, hits
}
