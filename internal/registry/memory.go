package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/riskframe/riskframe/pkg/questionnaire"
)

// MemoryStore implements Store in process memory. It backs tests, the
// offline CLI and single-node development servers.
type MemoryStore struct {
	mu         sync.RWMutex
	questions  map[string]questionnaire.Question
	frameworks map[string]Framework
	versions   map[string]Version
	numbered   map[string][]string // framework code -> version ids by number
	bound      map[string]bool
	now        func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions:  make(map[string]questionnaire.Question),
		frameworks: make(map[string]Framework),
		versions:   make(map[string]Version),
		numbered:   make(map[string][]string),
		bound:      make(map[string]bool),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// cloneVersion deep-copies through JSON so callers never share maps or
// slices with the store.
func cloneVersion(v Version) *Version {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("clone version %s: %v", v.ID, err))
	}
	var out Version
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("clone version %s: %v", v.ID, err))
	}
	return &out
}

func cloneQuestion(q questionnaire.Question) questionnaire.Question {
	q.Options = append([]string(nil), q.Options...)
	if q.Min != nil {
		lo := *q.Min
		q.Min = &lo
	}
	if q.Max != nil {
		hi := *q.Max
		q.Max = &hi
	}
	return q
}

func (s *MemoryStore) CreateQuestion(_ context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[q.Key]; ok {
		return nil, fmt.Errorf("question %s: %w", q.Key, ErrConflict)
	}
	q.CreatedAt = s.now()
	s.questions[q.Key] = cloneQuestion(q)
	out := cloneQuestion(q)
	return &out, nil
}

func (s *MemoryStore) UpdateQuestion(_ context.Context, q questionnaire.Question) (*questionnaire.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.questions[q.Key]
	if !ok {
		return nil, fmt.Errorf("question %s: %w", q.Key, ErrNotFound)
	}
	if s.bound[q.Key] {
		return nil, fmt.Errorf("question %s: %w", q.Key, ErrQuestionReferenced)
	}
	q.Active = cur.Active
	q.CreatedAt = cur.CreatedAt
	s.questions[q.Key] = cloneQuestion(q)
	out := cloneQuestion(q)
	return &out, nil
}

func (s *MemoryStore) SetQuestionActive(_ context.Context, key string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[key]
	if !ok {
		return fmt.Errorf("question %s: %w", key, ErrNotFound)
	}
	q.Active = active
	s.questions[key] = q
	return nil
}

func (s *MemoryStore) GetQuestions(_ context.Context, keys []string) ([]questionnaire.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []questionnaire.Question
	for _, k := range keys {
		if q, ok := s.questions[k]; ok {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) ListQuestions(_ context.Context) ([]questionnaire.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]questionnaire.Question, 0, len(s.questions))
	for _, q := range s.questions {
		out = append(out, cloneQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) CreateFramework(_ context.Context, f Framework) (*Framework, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.frameworks[f.Code]; ok {
		return nil, fmt.Errorf("framework %s: %w", f.Code, ErrConflict)
	}
	f.CreatedAt = s.now()
	s.frameworks[f.Code] = f
	return &f, nil
}

func (s *MemoryStore) GetFramework(_ context.Context, code string) (*Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.frameworks[code]
	if !ok {
		return nil, fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	return &f, nil
}

func (s *MemoryStore) ListFrameworks(_ context.Context) ([]Framework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Framework, 0, len(s.frameworks))
	for _, f := range s.frameworks {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) CreateVersion(_ context.Context, v Version) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.frameworks[v.FrameworkCode]; !ok {
		return nil, fmt.Errorf("framework %s: %w", v.FrameworkCode, ErrNotFound)
	}
	if _, ok := s.versions[v.ID]; ok {
		return nil, fmt.Errorf("version %s: %w", v.ID, ErrConflict)
	}
	ids := s.numbered[v.FrameworkCode]
	v.Number = len(ids) + 1
	v.CreatedAt = s.now()
	if v.IsDefault {
		s.clearDefault(v.FrameworkCode)
	}
	stored := cloneVersion(v)
	s.versions[v.ID] = *stored
	s.numbered[v.FrameworkCode] = append(ids, v.ID)
	for _, b := range v.Bindings {
		s.bound[b.Question] = true
	}
	return cloneVersion(v), nil
}

func (s *MemoryStore) clearDefault(code string) {
	for _, id := range s.numbered[code] {
		v := s.versions[id]
		if v.IsDefault {
			v.IsDefault = false
			s.versions[id] = v
		}
	}
}

func (s *MemoryStore) GetVersion(_ context.Context, id string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, fmt.Errorf("version %s: %w", id, ErrVersionNotFound)
	}
	return cloneVersion(v), nil
}

func (s *MemoryStore) ActiveVersion(_ context.Context, code string) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.frameworks[code]; !ok {
		return nil, fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	for _, id := range s.numbered[code] {
		if v := s.versions[id]; v.IsDefault {
			return cloneVersion(v), nil
		}
	}
	return nil, fmt.Errorf("framework %s: %w", code, ErrNoActiveVersion)
}

func (s *MemoryStore) ListVersions(_ context.Context, code string) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.frameworks[code]; !ok {
		return nil, fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	out := make([]Version, 0, len(s.numbered[code]))
	for _, id := range s.numbered[code] {
		out = append(out, *cloneVersion(s.versions[id]))
	}
	return out, nil
}

func (s *MemoryStore) ActivateVersion(_ context.Context, code string, number int) (*Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.frameworks[code]; !ok {
		return nil, fmt.Errorf("framework %s: %w", code, ErrNotFound)
	}
	ids := s.numbered[code]
	if number < 1 || number > len(ids) {
		return nil, fmt.Errorf("%s version %d: %w", code, number, ErrVersionNotFound)
	}
	s.clearDefault(code)
	v := s.versions[ids[number-1]]
	v.IsDefault = true
	s.versions[v.ID] = v
	return cloneVersion(v), nil
}
