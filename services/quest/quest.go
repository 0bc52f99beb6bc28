// Package quest keeps the client-side quest list for the selected
// adventurer, plus the transient "current quest" and inline-edit cursors.
package quest

import (
	"context"
	"fmt"
	"sync"

	"github.com/fatih/structs"

	"sideQuest/api"
	"sideQuest/clients/sidequest"
)

type Service interface {
	Fetch(ctx context.Context, adventurerID string) ([]api.Quest, error)
	Create(ctx context.Context, req api.CreateQuestRequest) (*api.Quest, error)
	Get(ctx context.Context, id string) (*api.Quest, error)
	Update(ctx context.Context, id string, update api.QuestUpdate) (*api.Quest, error)
	// Complete flips the completed flag through a partial update. Progression
	// (experience, level-up) is the adventurer service's completion call.
	Complete(ctx context.Context, id string) (*api.Quest, error)
	Delete(ctx context.Context, id string) error
	All() []api.Quest
	Current() *api.Quest
	SetCurrent(id string) error
	// Editing tracks which quest field an inline editor currently targets.
	SetEditing(questID, field string) error
	Editing() (questID, field string, ok bool)
	ClearEditing()
	Err() string
	ClearErr()
}

var _ Service = (*service)(nil)

type service struct {
	client   *sidequest.Client
	basePath string

	mu           sync.RWMutex
	quests       []api.Quest
	currentID    string
	editingID    string
	editingField string
	errMsg       string
}

func NewService(client *sidequest.Client, basePath string) Service {
	return &service{
		client:   client,
		basePath: basePath,
	}
}

func (s *service) Fetch(ctx context.Context, adventurerID string) ([]api.Quest, error) {
	var list []api.Quest
	if _, err := s.client.Get(ctx, s.basePath+"/quests/"+adventurerID, &list, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.quests = list
	if s.currentID != "" && s.indexOfLocked(s.currentID) < 0 {
		s.currentID = ""
	}
	if s.editingID != "" && s.indexOfLocked(s.editingID) < 0 {
		s.editingID = ""
		s.editingField = ""
	}
	s.errMsg = ""
	s.mu.Unlock()
	return s.All(), nil
}

func (s *service) Create(ctx context.Context, req api.CreateQuestRequest) (*api.Quest, error) {
	var created api.Quest
	if _, err := s.client.Post(ctx, s.basePath+"/quest", req, &created, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.applyLocked(created, true)
	s.currentID = created.ID
	s.errMsg = ""
	s.mu.Unlock()
	return &created, nil
}

func (s *service) Get(ctx context.Context, id string) (*api.Quest, error) {
	var fetched api.Quest
	if _, err := s.client.Get(ctx, s.basePath+"/quest/"+id, &fetched, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	// Refresh the listed copy and move the selection only when the quest is
	// actually in the list; fetching an unlisted quest never selects it.
	if i := s.indexOfLocked(fetched.ID); i >= 0 {
		s.quests[i] = fetched
		s.currentID = fetched.ID
	}
	s.errMsg = ""
	s.mu.Unlock()
	return &fetched, nil
}

func (s *service) Update(ctx context.Context, id string, update api.QuestUpdate) (*api.Quest, error) {
	payload := structs.Map(update)
	if len(payload) == 0 {
		err := &api.Error{Message: "no fields to update", Code: api.CodeClientError}
		s.setErr(err)
		return nil, err
	}

	var updated api.Quest
	if _, err := s.client.Put(ctx, s.basePath+"/quest/"+id, payload, &updated, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	// Replace the listed entry in place, preserving list order; an update
	// for a quest that is no longer listed is a stale target and ignored.
	s.applyLocked(updated, false)
	s.errMsg = ""
	s.mu.Unlock()
	return &updated, nil
}

func (s *service) Complete(ctx context.Context, id string) (*api.Quest, error) {
	completed := true
	return s.Update(ctx, id, api.QuestUpdate{Completed: &completed})
}

func (s *service) Delete(ctx context.Context, id string) error {
	var ack api.MessageResponse
	if _, err := s.client.Delete(ctx, s.basePath+"/quest/"+id, &ack, sidequest.Options{}); err != nil {
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	if i := s.indexOfLocked(id); i >= 0 {
		s.quests = append(s.quests[:i], s.quests[i+1:]...)
	}
	if s.currentID == id {
		s.currentID = ""
	}
	if s.editingID == id {
		s.editingID = ""
		s.editingField = ""
	}
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

func (s *service) All() []api.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Quest, len(s.quests))
	copy(out, s.quests)
	return out
}

func (s *service) Current() *api.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOfLocked(s.currentID); i >= 0 {
		q := s.quests[i]
		return &q
	}
	return nil
}

func (s *service) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOfLocked(id) < 0 {
		return fmt.Errorf("quest %q is not in the fetched list", id)
	}
	s.currentID = id
	return nil
}

func (s *service) SetEditing(questID, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOfLocked(questID) < 0 {
		return fmt.Errorf("quest %q is not in the fetched list", questID)
	}
	s.editingID = questID
	s.editingField = field
	return nil
}

func (s *service) Editing() (string, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editingID, s.editingField, s.editingID != ""
}

func (s *service) ClearEditing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editingID = ""
	s.editingField = ""
}

func (s *service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *service) ClearErr() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = ""
}

func (s *service) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errMsg = api.Message(err)
}

func (s *service) indexOfLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.quests {
		if s.quests[i].ID == id {
			return i
		}
	}
	return -1
}

// applyLocked replaces a listed quest in place; unlisted quests are
// appended only when appendNew is set (create), otherwise ignored.
func (s *service) applyLocked(q api.Quest, appendNew bool) {
	if i := s.indexOfLocked(q.ID); i >= 0 {
		s.quests[i] = q
		return
	}
	if appendNew {
		s.quests = append(s.quests, q)
	}
}
