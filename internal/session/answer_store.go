package session

import (
	"sync"

	"github.com/lshigami/examgrader/internal/model"
)

// AnswerStore is the in-memory answer sheet of one attempt. Every edit bumps a
// version; the store is dirty while the last saved version is behind it.
type AnswerStore struct {
	mu           sync.Mutex
	order        []uint
	answers      map[uint]string
	version      uint64
	savedVersion uint64
}

// NewAnswerStore creates an empty store serialized in the given question order.
func NewAnswerStore(questionIDs []uint) *AnswerStore {
	return &AnswerStore{
		order:   append([]uint(nil), questionIDs...),
		answers: make(map[uint]string, len(questionIDs)),
	}
}

// Load replaces the content with persisted answers. The result counts as saved.
func (s *AnswerStore) Load(entries []model.AnswerEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers = make(map[uint]string, len(entries))
	for _, e := range entries {
		s.answers[e.QuestionID] = e.Answer
	}
	s.savedVersion = s.version
}

func (s *AnswerStore) Set(questionID uint, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.answers[questionID] = value
	s.version++
}

func (s *AnswerStore) Get(questionID uint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[questionID]
}

// Serialize returns one entry per question in exam order; unanswered ones are "".
func (s *AnswerStore) Serialize() []model.AnswerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializeLocked()
}

// Snapshot is Serialize plus the version it reflects, for MarkSaved.
func (s *AnswerStore) Snapshot() ([]model.AnswerEntry, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serializeLocked(), s.version
}

func (s *AnswerStore) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != s.savedVersion
}

// MarkSaved records that everything up to version is persisted. Edits made
// after the snapshot keep the store dirty.
func (s *AnswerStore) MarkSaved(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
}

func (s *AnswerStore) serializeLocked() []model.AnswerEntry {
	entries := make([]model.AnswerEntry, len(s.order))
	for i, id := range s.order {
		entries[i] = model.AnswerEntry{QuestionID: id, Answer: s.answers[id]}
	}
	return entries
}
