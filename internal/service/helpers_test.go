package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/models"
	"github.com/raphaelgruber/promosignal/internal/store"
	"github.com/stretchr/testify/require"
)

// scriptedModel answers prompts through per-stage handlers. Unset handlers
// return "{}". It is safe for concurrent use.
type scriptedModel struct {
	extract    func(indices []int, chunk string) (string, error)
	cluster    func(phrases string) (string, error)
	dedupe     func(names string) (string, error)
	difference func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

var awardLine = regexp.MustCompile(`(?m)^(\d+)#`)

func (m *scriptedModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	switch {
	case strings.Contains(prompt, "\nAwards:\n"):
		chunk := strings.SplitN(prompt, "\nAwards:\n", 2)[1]
		var indices []int
		for _, match := range awardLine.FindAllStringSubmatch(chunk, -1) {
			n, _ := strconv.Atoi(match[1])
			indices = append(indices, n)
		}
		if m.extract != nil {
			return m.extract(indices, chunk)
		}
	case strings.Contains(prompt, "\nPhrases:\n"):
		if m.cluster != nil {
			return m.cluster(strings.SplitN(prompt, "\nPhrases:\n", 2)[1])
		}
	case strings.Contains(prompt, "\nNames:\n"):
		if m.dedupe != nil {
			return m.dedupe(strings.SplitN(prompt, "\nNames:\n", 2)[1])
		}
	case strings.Contains(prompt, "Treatment group themes"):
		if m.difference != nil {
			return m.difference(prompt)
		}
	}
	return "{}", nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *scriptedModel) callsContaining(s string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, s) {
			n++
		}
	}
	return n
}

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

func newTestArtifacts(t *testing.T) (*store.Artifacts, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := store.NewFileBackend(dir)
	require.NoError(t, err)
	return store.NewArtifacts(backend, metrics.NewCollector()), dir
}

func employee(id int, vp bool, awards ...string) models.Employee {
	emp := models.Employee{ID: id, IsVP: vp}
	for _, a := range awards {
		title, msg, _ := strings.Cut(a, "|")
		emp.Awards = append(emp.Awards, models.AwardRecord{Title: title, Message: msg})
	}
	return emp
}
