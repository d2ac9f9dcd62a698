package wikidata

import (
	"encoding/json"
	"strings"
)

// Wikidata property ids used by the resolver.
const (
	PropInstanceOf = "P31"
	PropSubclassOf = "P279"
	PropBNF        = "P268"
)

// RawHit is one result from the entity-search endpoint, before the full
// entity details are fetched.
type RawHit struct {
	ID          string
	Label       string
	Description string
	Aliases     []string
	Language    string
}

// Entity is a read-only projection of a knowledge-base item. Entities
// are never created by this system, only referenced and cached by id.
type Entity struct {
	ID            string
	Labels        map[string]string
	Descriptions  map[string]string
	Aliases       map[string][]string
	InstanceOf    []string
	SubclassOf    []string
	BNFID         string
	SitelinkCount int
}

// LabelIn returns the label in the first language of langs that has one,
// falling back to any available label, then to the id.
func (e Entity) LabelIn(langs []string) string {
	for _, lg := range langs {
		if v, ok := e.Labels[lg]; ok && v != "" {
			return v
		}
	}
	for _, v := range e.Labels {
		if v != "" {
			return v
		}
	}
	return e.ID
}

// AliasList flattens aliases across all languages.
func (e Entity) AliasList() []string {
	var out []string
	for _, list := range e.Aliases {
		out = append(out, list...)
	}
	return out
}

// AliasCount counts aliases across all languages.
func (e Entity) AliasCount() int {
	n := 0
	for _, list := range e.Aliases {
		n += len(list)
	}
	return n
}

// HasSubclass reports whether the entity declares any subclass-of parent.
func (e Entity) HasSubclass() bool { return len(e.SubclassOf) > 0 }

// HasType reports whether id is among the entity's instance-of types.
func (e Entity) HasType(id string) bool {
	for _, t := range e.InstanceOf {
		if t == id {
			return true
		}
	}
	return false
}

// Text concatenates all labels, descriptions and aliases, used when a
// type entity's text is matched fuzzily against a document context.
func (e Entity) Text() string {
	var parts []string
	for _, v := range e.Labels {
		parts = append(parts, v)
	}
	for _, v := range e.Descriptions {
		parts = append(parts, v)
	}
	for _, list := range e.Aliases {
		parts = append(parts, list...)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ---- wire format ----

type apiEnvelope struct {
	Error    *apiError            `json:"error"`
	Search   []apiSearchHit       `json:"search"`
	Entities map[string]apiEntity `json:"entities"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type apiSearchHit struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

type apiText struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

type apiClaim struct {
	MainSnak struct {
		DataValue struct {
			Value json.RawMessage `json:"value"`
		} `json:"datavalue"`
	} `json:"mainsnak"`
}

type apiEntity struct {
	ID           string                     `json:"id"`
	Missing      *string                    `json:"missing"`
	Labels       map[string]apiText         `json:"labels"`
	Descriptions map[string]apiText         `json:"descriptions"`
	Aliases      map[string][]apiText       `json:"aliases"`
	Claims       map[string][]apiClaim      `json:"claims"`
	Sitelinks    map[string]json.RawMessage `json:"sitelinks"`
}

// claimItemIDs extracts the target item ids of a property's claims.
func (a apiEntity) claimItemIDs(prop string) []string {
	var out []string
	for _, cl := range a.Claims[prop] {
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(cl.MainSnak.DataValue.Value, &v); err == nil && v.ID != "" {
			out = append(out, v.ID)
		}
	}
	return out
}

// claimString extracts the first string-valued claim of a property,
// used for external identifiers such as the BNF id.
func (a apiEntity) claimString(prop string) string {
	for _, cl := range a.Claims[prop] {
		var s string
		if err := json.Unmarshal(cl.MainSnak.DataValue.Value, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

func (a apiEntity) toEntity() Entity {
	e := Entity{
		ID:            a.ID,
		Labels:        make(map[string]string, len(a.Labels)),
		Descriptions:  make(map[string]string, len(a.Descriptions)),
		Aliases:       make(map[string][]string, len(a.Aliases)),
		InstanceOf:    a.claimItemIDs(PropInstanceOf),
		SubclassOf:    a.claimItemIDs(PropSubclassOf),
		BNFID:         a.claimString(PropBNF),
		SitelinkCount: len(a.Sitelinks),
	}
	for lg, t := range a.Labels {
		e.Labels[lg] = t.Value
	}
	for lg, t := range a.Descriptions {
		e.Descriptions[lg] = t.Value
	}
	for lg, list := range a.Aliases {
		vals := make([]string, 0, len(list))
		for _, t := range list {
			vals = append(vals, t.Value)
		}
		e.Aliases[lg] = vals
	}
	return e
}
