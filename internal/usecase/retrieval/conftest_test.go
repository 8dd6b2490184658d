package retrieval

import (
	"context"
	"errors"
	"sync"

	"github.com/kailas-cloud/trustdesk/internal/domain"
	"github.com/kailas-cloud/trustdesk/internal/domain/block"
	"github.com/kailas-cloud/trustdesk/internal/domain/cachedanswer"
	"github.com/kailas-cloud/trustdesk/internal/domain/document"
	"github.com/kailas-cloud/trustdesk/internal/domain/knowledge"
	domretrieval "github.com/kailas-cloud/trustdesk/internal/domain/retrieval"
)

// --- Mocks ---

type mockAnswerStore struct {
	entries []cachedanswer.Entry
	addErr  error
}

func (m *mockAnswerStore) All() []cachedanswer.Entry { return m.entries }

func (m *mockAnswerStore) Add(q, a string, kws []string) (cachedanswer.Entry, error) {
	if m.addErr != nil {
		return cachedanswer.Entry{}, m.addErr
	}
	e := cachedanswer.Entry{ID: "qa_1", Question: q, Answer: a, Keywords: kws}
	m.entries = append(m.entries, e)
	return e, nil
}

type mockIndex struct {
	results []domretrieval.Result
	pages   map[string]string
	err     error
}

func (m *mockIndex) Search(_ context.Context, _ string, _ int, _ string) ([]domretrieval.Result, error) {
	return m.results, m.err
}

func (m *mockIndex) GetPage(_ context.Context, id string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if p, ok := m.pages[id]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

type mockWorkspaceAPI struct {
	mu          sync.Mutex
	pages       []knowledge.LivePage
	blocks      map[string][]block.Block
	failBlocks  map[string]bool
	searchErr   error
	fetchedIDs  []string
	childLimits []int
}

func (m *mockWorkspaceAPI) SearchPages(_ context.Context, _ string, limit int) ([]knowledge.LivePage, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > 0 && len(m.pages) > limit {
		return m.pages[:limit], nil
	}
	return m.pages, nil
}

func (m *mockWorkspaceAPI) GetPage(_ context.Context, id string) (knowledge.LivePage, error) {
	m.mu.Lock()
	m.fetchedIDs = append(m.fetchedIDs, id)
	m.mu.Unlock()
	for _, p := range m.pages {
		if p.ID == id {
			return p, nil
		}
	}
	return knowledge.LivePage{}, errors.New("object_not_found")
}

func (m *mockWorkspaceAPI) Children(_ context.Context, id string, limit int) ([]block.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.childLimits = append(m.childLimits, limit)
	if m.failBlocks[id] {
		return nil, domain.ErrWorkspaceUnavailable
	}
	return m.blocks[id], nil
}

type mockCorpus struct {
	docs     []document.Doc
	sections []string
}

func (m *mockCorpus) Docs() []document.Doc { return m.docs }
func (m *mockCorpus) Sections() []string   { return m.sections }
