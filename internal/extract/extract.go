// Package extract pulls dataset identifiers out of raw portal payloads.
// Extraction is pure: no I/O, deterministic for a given input, so the
// matching rules stay testable without any network fixture.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"investorradar/domain/catalog"
)

// uuidPattern matches UUID-shaped tokens anywhere in a payload.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// datasetPathPattern matches identifiers embedded in portal dataset URLs,
// e.g. href="/datasets/view/9f2c...". The portal occasionally percent-pads
// these links, so the capture tolerates surrounding encodings.
var datasetPathPattern = regexp.MustCompile(`(?i)datasets?(?:/view)?[/=]([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)

// envelopePaths are the JSON response shapes the portal is known to emit.
var envelopePaths = []string{"result.results", "results", "data", "datasets", "items", "packages"}

// idKeys are the entry fields that may carry the identifier.
var idKeys = []string{"id", "uuid", "dataset_id", "datasetId", "identifier"}

// titleKeys and titleArKeys are the entry fields that may carry titles.
var (
	titleKeys   = []string{"title", "name", "title_en", "name_en", "label"}
	titleArKeys = []string{"title_ar", "name_ar", "arabic_title"}
)

// Sentinel reports whether id is a placeholder the portal emits for
// missing references. The all-zero UUID and near-zero variants with
// zeroed leading groups are never real dataset ids.
func Sentinel(id string) bool {
	if id == "00000000-0000-0000-0000-000000000000" {
		return true
	}
	return strings.HasPrefix(id, "00000000-0000-0000-")
}

type hit struct {
	pos int
	id  string
}

// Identifiers returns the distinct dataset identifiers found in raw text,
// lowercased, in order of first appearance. Sentinel ids are dropped.
func Identifiers(text string) []string {
	var hits []hit

	for _, loc := range uuidPattern.FindAllStringIndex(text, -1) {
		hits = append(hits, hit{pos: loc[0], id: text[loc[0]:loc[1]]})
	}
	for _, loc := range datasetPathPattern.FindAllStringSubmatchIndex(text, -1) {
		// loc[2]:loc[3] is the captured identifier group.
		hits = append(hits, hit{pos: loc[2], id: text[loc[2]:loc[3]]})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		id := strings.ToLower(h.id)
		if Sentinel(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Entries walks the known JSON envelope shapes and recovers identifier
// plus title tuples. Payloads that are not valid JSON yield no entries;
// the caller falls back to the raw text scan.
func Entries(raw string) []catalog.CatalogEntry {
	if !gjson.Valid(raw) {
		return nil
	}
	root := gjson.Parse(raw)

	var entries []catalog.CatalogEntry
	seen := make(map[string]bool)
	for _, path := range envelopePaths {
		node := root.Get(path)
		if !node.IsArray() {
			continue
		}
		node.ForEach(func(_, item gjson.Result) bool {
			entry, ok := entryFrom(item)
			if !ok || seen[entry.ExternalID] {
				return true
			}
			seen[entry.ExternalID] = true
			entries = append(entries, entry)
			return true
		})
	}
	return entries
}

func entryFrom(item gjson.Result) (catalog.CatalogEntry, bool) {
	var entry catalog.CatalogEntry

	for _, key := range idKeys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			entry.ExternalID = strings.ToLower(strings.TrimSpace(v.String()))
			break
		}
	}
	if entry.ExternalID == "" || Sentinel(entry.ExternalID) {
		return catalog.CatalogEntry{}, false
	}

	for _, key := range titleKeys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			entry.Title = strings.TrimSpace(v.String())
			break
		}
	}
	for _, key := range titleArKeys {
		if v := item.Get(key); v.Exists() && v.String() != "" {
			entry.TitleAr = strings.TrimSpace(v.String())
			break
		}
	}
	return entry, true
}
