package llm

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

const signalExtractionInstructions = `You are reviewing several award entries received by one employee.

Every entry has the form:
<award_index>#<title>|<message>

Extract only behavioral signals that would support a VP promotion case. Do not
force extraction when the text carries no such meaning.

STEP 1: SEGMENT
Split each title and message into semantic units. A unit holds one complete
behavioral idea and may be part of a sentence, a sentence, or several
sentences. Keep their order. Segmentation is internal and must not appear in
the output.

STEP 2: CANDIDATES
For each unit extract zero to two short phrases (1 to 4 words) naming a
distinct, promotable competency. Generic praise ("thanks", "great job", "hard
work"), routine duties, basic teamwork and vague compliments yield nothing.

STEP 3: VP RELEVANCE
Keep a candidate only if it reflects strategic leadership, organizational
impact, cross-team influence, people development, high-stakes execution,
complex problem solving, ownership, innovation leadership, decision-making
influence, executive alignment, change leadership, or long-term vision.

STEP 4: INDEXING
Use the award_index exactly as given. Inside an award, sub-index "0" is the
title (only when the title itself is meaningful) and "1", "2", ... are the
message units in order. Omit any unit that produced no signal.

STEP 5: OUTPUT
Return one JSON object mapping award_index to an object that maps sub-index to
an array of phrases. All keys are strings. Return nothing else.

Example input:
0#Innovation Spotlight|She created a new automation. It saved 40 hours. The change was well received.
Example output:
{"0": {"0": ["innovation"], "1": ["process automation"], "2": ["efficiency improvement"]}}

Example input:
0#Recognition Award|Thank you for your hard work. You always give your best.
Example output:
{"0": {"2": ["dedication"]}}

Example input:
0#Team Leadership Award|She led a cross-functional migration effort. She coordinated directors and ICs across multiple regions.
Example output:
{"0": {"0": ["leadership"], "1": ["cross-functional leadership"], "2": ["multi-level coordination"]}}
`

const clusterInstructions = `You are grouping behavior phrases extracted from one employee's awards into
VP-level behavioral themes.

STEP 1: CLEAN
Drop duplicate phrases, near-duplicates with identical meaning, and phrases
that are not promotable competencies (basic cooperation, simple task
execution, vague positivity, generic praise).

STEP 2: CLUSTER
Group the remaining phrases by underlying behavioral meaning. Clusters must be
coherent and distinct from each other. A phrase that fits no group becomes a
single-phrase cluster. Each phrase belongs to at most one cluster. The number
of clusters is not fixed.

STEP 3: NAME
Give each cluster a 1 to 4 word name at the leadership competency level, for
example "Cross-functional Leadership", "Stakeholder Influence", "People
Development". Avoid vague labels.

STEP 4: DESCRIBE
Write one sentence per cluster saying what the behavior is and why it matters
for senior leadership.

STEP 5: OUTPUT
Return one JSON object:
{"<cluster name>": {"phrases": ["...", "..."], "description": "..."}}
Use the phrases exactly as given. Return nothing else.
`

const dedupeInstructions = `You are consolidating behavioral theme names collected from many employees of
the same group. Several names may describe the same theme with different
wording (for example "Team Leadership" and "Leading Teams").

Merge aggressively:
- Merge any two names whose meaning overlaps at all, whether they differ in
  wording, in scope or in granularity.
- When you are uncertain whether two names belong together, merge them.
  Merging is always preferred over keeping names apart.

For each merged group:
- The canonical name is the most general name among the group's aliases.
  Pick it from the aliases; do not invent a new name.
- Write a neutral summary of the shared meaning in 1 to 2 sentences.

Rules:
- Every input name must appear in exactly one group's "aliases".
- Use the input names exactly as given in "aliases"; do not invent new ones.
- A name with no overlapping name forms its own group.

Return one JSON object:
{"<canonical name>": {"aliases": ["...", "..."], "summary": "..."}}
Return nothing else.
`

const differenceInstructions = `You are comparing the behavioral themes of two employee groups. The treatment
group was promoted to VP; the control group was not.

Merge equivalent themes across both lists into categories. For each category
give a concise name, the input names it covers as "aliases", a one-sentence
summary, and "group_presence":
- "both_groups" when the theme occurs in both lists
- "treatment_only" when it occurs only in the treatment list
- "control_only" when it occurs only in the control list

Return one JSON object:
{"<category>": {"aliases": ["..."], "summary": "...", "group_presence": "both_groups"}}
Return nothing else.
`

// SignalExtractionPrompt builds the prompt that extracts signals from one
// chunk of formatted awards.
func SignalExtractionPrompt(chunk string) string {
	return fmt.Sprintf("%s\nAwards:\n%s\nReturn only the JSON object.", signalExtractionInstructions, chunk)
}

// ClusterPrompt builds the prompt that clusters one employee's phrases.
func ClusterPrompt(phrases []string) string {
	return fmt.Sprintf("%s\nPhrases:\n%s\n\nReturn only the JSON object.", clusterInstructions, jsonList(phrases))
}

// DedupePrompt builds the prompt that groups a cohort's cluster names.
func DedupePrompt(names []string) string {
	return fmt.Sprintf("%s\nNames:\n%s\n\nReturn only the JSON object.", dedupeInstructions, jsonList(names))
}

// DifferencePrompt builds the prompt comparing treatment and control themes.
func DifferencePrompt(treatment, control []string) string {
	var b strings.Builder
	b.WriteString(differenceInstructions)
	b.WriteString("\nTreatment group themes:\n")
	b.WriteString(jsonList(treatment))
	b.WriteString("\n\nControl group themes:\n")
	b.WriteString(jsonList(control))
	b.WriteString("\n\nReturn only the JSON object.")
	return b.String()
}

// jsonList renders items sorted, as a JSON array, so that prompts are stable
// across runs.
func jsonList(items []string) string {
	sorted := slices.Clone(items)
	slices.Sort(sorted)
	if sorted == nil {
		sorted = []string{}
	}
	data, _ := json.MarshalIndent(sorted, "", "  ")
	return string(data)
}
