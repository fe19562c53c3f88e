package service

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/parser"
)

// parseChunkSignals decodes extraction output for one chunk. Award keys must
// name awards that belong to the chunk. Entries that violate the shape are
// logged and skipped; sentences and awards left without phrases are dropped.
// A reply that is not a JSON object returns parser.ErrMalformedResponse.
func parseChunkSignals(raw string, awardIndices []int, log *slog.Logger) (models.SignalMap, error) {
	obj, err := parser.DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	allowed := make(map[int]bool, len(awardIndices))
	for _, i := range awardIndices {
		allowed[i] = true
	}

	out := make(models.SignalMap)
	for key, value := range obj {
		idx, ok := parseIndex(key)
		if !ok || !allowed[idx] {
			log.Warn("skipping signal entry for unknown award index", "award_index", key)
			continue
		}

		var subs map[string]json.RawMessage
		if err := json.Unmarshal(value, &subs); err != nil || subs == nil {
			log.Warn("skipping award entry that is not an object", "award_index", key)
			continue
		}

		award := make(map[string][]string)
		for subKey, phrasesRaw := range subs {
			sub, ok := parseIndex(subKey)
			if !ok {
				log.Warn("skipping non-numeric sub-index", "award_index", key, "sub_index", subKey)
				continue
			}
			var phrases []string
			if err := json.Unmarshal(phrasesRaw, &phrases); err != nil {
				log.Warn("skipping phrases that are not a string list", "award_index", key, "sub_index", subKey)
				continue
			}
			phrases = cleanPhrases(phrases)
			if len(phrases) == 0 {
				continue
			}
			award[strconv.Itoa(sub)] = phrases
		}
		if len(award) > 0 {
			out[strconv.Itoa(idx)] = award
		}
	}
	return out, nil
}

// parseClusterSet decodes clustering output. Malformed cluster entries are
// skipped. Each phrase is kept in the first cluster (by name) that claims it,
// and phrases that were not part of the input are dropped.
func parseClusterSet(raw string, input []string, log *slog.Logger) (models.ClusterSet, error) {
	obj, err := parser.DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	known := make(map[string]string, len(input))
	for _, p := range input {
		known[models.PhraseKey(p)] = p
	}

	// Raw keys are visited in sorted order so that names colliding after
	// normalization resolve the same way on every run.
	decoded := make(models.ClusterSet, len(obj))
	for _, rawName := range slices.Sorted(maps.Keys(obj)) {
		name := models.NormalizePhrase(rawName)
		var c models.Cluster
		if err := json.Unmarshal(obj[rawName], &c); err != nil || name == "" {
			log.Warn("skipping malformed cluster", "cluster", name)
			continue
		}
		if _, ok := decoded[name]; ok {
			log.Warn("skipping cluster whose name repeats an earlier one", "cluster", name, "raw_name", rawName)
			continue
		}
		decoded[name] = c
	}

	out := make(models.ClusterSet, len(decoded))
	claimed := make(map[string]bool)
	for _, name := range decoded.Names() {
		c := decoded[name]
		var phrases []string
		for _, p := range c.Phrases {
			original, ok := known[models.PhraseKey(p)]
			if !ok {
				log.Debug("dropping phrase not in input", "cluster", name, "phrase", p)
				continue
			}
			if claimed[original] {
				log.Debug("dropping phrase already clustered", "cluster", name, "phrase", p)
				continue
			}
			claimed[original] = true
			phrases = append(phrases, original)
		}
		if len(phrases) == 0 {
			log.Warn("dropping cluster without usable phrases", "cluster", name)
			continue
		}
		out[name] = models.Cluster{Phrases: phrases, Description: strings.TrimSpace(c.Description)}
	}
	return out, nil
}

// parseCanonicalSet decodes dedup output. Entries that are not
// {aliases, summary} objects are skipped.
func parseCanonicalSet(raw string, log *slog.Logger) (models.CanonicalSet, error) {
	obj, err := parser.DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	out := make(models.CanonicalSet, len(obj))
	for name, value := range obj {
		var c models.CanonicalCluster
		if err := json.Unmarshal(value, &c); err != nil || strings.TrimSpace(name) == "" {
			log.Warn("skipping malformed canonical cluster", "canonical", name)
			continue
		}
		c.Summary = strings.TrimSpace(c.Summary)
		out[strings.TrimSpace(name)] = c
	}
	return out, nil
}

// parseDifference decodes comparison output. Categories with an unknown
// group_presence are skipped.
func parseDifference(raw string, log *slog.Logger) (models.Difference, error) {
	obj, err := parser.DecodeObject(raw)
	if err != nil {
		return nil, err
	}

	out := make(models.Difference, len(obj))
	for name, value := range obj {
		var c models.DiffCategory
		if err := json.Unmarshal(value, &c); err != nil {
			log.Warn("skipping malformed difference category", "category", name)
			continue
		}
		if !c.GroupPresence.Valid() {
			log.Warn("skipping difference category with invalid group presence", "category", name, "group_presence", c.GroupPresence)
			continue
		}
		out[name] = c
	}
	return out, nil
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func cleanPhrases(phrases []string) []string {
	out := phrases[:0]
	for _, p := range phrases {
		if p = models.NormalizePhrase(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
