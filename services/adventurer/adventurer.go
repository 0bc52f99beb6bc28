// Package adventurer keeps the client-side list of the session user's
// adventurers and the transient "current adventurer" selection.
package adventurer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"sideQuest/api"
	"sideQuest/clients/sidequest"
)

// CompletionResult carries the progression the server computed when a quest
// was completed for an adventurer.
type CompletionResult struct {
	Adventurer       api.Adventurer
	WasNewCompletion bool
	LeveledUp        bool
}

type Service interface {
	Fetch(ctx context.Context) ([]api.Adventurer, error)
	Create(ctx context.Context, name, userID, adventurerType string) (*api.Adventurer, error)
	Get(ctx context.Context, id string) (*api.Adventurer, error)
	CompleteQuest(ctx context.Context, adventurerID, questID string) (*CompletionResult, error)
	All() []api.Adventurer
	Current() *api.Adventurer
	// SetCurrent is a purely local selection; the id must reference an
	// adventurer present in the list.
	SetCurrent(id string) error
	Err() string
	ClearErr()
}

var _ Service = (*service)(nil)

type service struct {
	client   *sidequest.Client
	basePath string

	mu          sync.RWMutex
	adventurers []api.Adventurer
	currentID   string
	errMsg      string
}

func NewService(client *sidequest.Client, basePath string) Service {
	return &service{
		client:   client,
		basePath: basePath,
	}
}

func (s *service) Fetch(ctx context.Context) ([]api.Adventurer, error) {
	var list []api.Adventurer
	if _, err := s.client.Get(ctx, s.basePath+"/adventurers", &list, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.adventurers = list
	// A refresh re-resolves the current pointer by id; a selection that no
	// longer exists is dropped rather than left dangling.
	if s.currentID != "" && s.indexOfLocked(s.currentID) < 0 {
		slog.With("adventurer_id", s.currentID).Info("current adventurer no longer listed, clearing selection")
		s.currentID = ""
	}
	s.errMsg = ""
	s.mu.Unlock()
	return s.All(), nil
}

func (s *service) Create(ctx context.Context, name, userID, adventurerType string) (*api.Adventurer, error) {
	if adventurerType == "" {
		adventurerType = api.DefaultAdventurerType
	}
	req := api.CreateAdventurerRequest{
		Name:           name,
		UserID:         userID,
		AdventurerType: adventurerType,
	}
	var created api.Adventurer
	if _, err := s.client.Post(ctx, s.basePath+"/adventurer", req, &created, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	s.upsertLocked(created)
	s.currentID = created.ID
	s.errMsg = ""
	s.mu.Unlock()
	return &created, nil
}

func (s *service) Get(ctx context.Context, id string) (*api.Adventurer, error) {
	var fetched api.Adventurer
	if _, err := s.client.Get(ctx, s.basePath+"/adventurer/"+id, &fetched, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	// Refresh the listed copy when present; a fetch of an unlisted
	// adventurer does not grow the list.
	if i := s.indexOfLocked(fetched.ID); i >= 0 {
		s.adventurers[i] = fetched
	}
	s.errMsg = ""
	s.mu.Unlock()
	return &fetched, nil
}

// CompleteQuest marks a quest complete for the adventurer and merges the
// returned progression (experience, level-up) into the listed record.
func (s *service) CompleteQuest(ctx context.Context, adventurerID, questID string) (*CompletionResult, error) {
	endpoint := s.basePath + "/adventurer/" + adventurerID + "/quest/" + questID
	var resp api.QuestCompletionResponse
	if _, err := s.client.Post(ctx, endpoint, nil, &resp, sidequest.Options{}); err != nil {
		s.setErr(err)
		return nil, err
	}

	s.mu.Lock()
	if i := s.indexOfLocked(resp.Adventurer.ID); i >= 0 {
		s.adventurers[i] = resp.Adventurer
	}
	s.currentID = resp.Adventurer.ID
	s.errMsg = ""
	s.mu.Unlock()

	if resp.LeveledUp {
		slog.With("adventurer", resp.Adventurer.Name, "level", resp.Adventurer.Level).Info("adventurer leveled up")
	}
	return &CompletionResult{
		Adventurer:       resp.Adventurer,
		WasNewCompletion: resp.WasNewCompletion,
		LeveledUp:        resp.LeveledUp,
	}, nil
}

func (s *service) All() []api.Adventurer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]api.Adventurer, len(s.adventurers))
	copy(out, s.adventurers)
	return out
}

func (s *service) Current() *api.Adventurer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOfLocked(s.currentID); i >= 0 {
		adv := s.adventurers[i]
		return &adv
	}
	return nil
}

func (s *service) SetCurrent(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOfLocked(id) < 0 {
		return fmt.Errorf("adventurer %q is not in the fetched list", id)
	}
	s.currentID = id
	return nil
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
	for i := range s.adventurers {
		if s.adventurers[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *service) upsertLocked(adv api.Adventurer) {
	if i := s.indexOfLocked(adv.ID); i >= 0 {
		s.adventurers[i] = adv
		return
	}
	s.adventurers = append(s.adventurers, adv)
}
