// Package schedtest provides in-memory doubles for the scheduling backends.
package schedtest

import (
	"context"
	"strconv"
	"sync"
	"time"

	"venuebot/internal/db/models"
	"venuebot/internal/scheduling"
)

// Store keeps rows in memory and hands out increasing ids.
type Store struct {
	mu     sync.Mutex
	nextID int64
	Events map[int64]models.EventRecord
	System models.EventSystemRecord
}

var _ scheduling.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{nextID: 100, Events: make(map[int64]models.EventRecord)}
}

func (s *Store) id() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

func (s *Store) CreateEvent(ctx context.Context, guildID string) (int64, error) {
	id := s.id()
	s.mu.Lock()
	s.Events[id] = models.EventRecord{ID: id, GuildID: guildID}
	s.mu.Unlock()
	return id, nil
}

func (s *Store) UpdateEvent(ctx context.Context, rec models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events[rec.ID] = rec
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Events, id)
	return nil
}

func (s *Store) CreateShiftBracket(ctx context.Context, eventID int64, start, end time.Time) (int64, error) {
	return s.id(), nil
}

func (s *Store) UpdateShiftBracket(ctx context.Context, rec models.ShiftBracketRecord) error {
	return nil
}

func (s *Store) DeleteShiftBracket(ctx context.Context, id int64) error { return nil }

func (s *Store) CreateEventPosition(ctx context.Context, eventID, positionID int64, quantity int) (int64, error) {
	return s.id(), nil
}

func (s *Store) UpdateEventPosition(ctx context.Context, rec models.EventPositionRecord) error {
	return nil
}

func (s *Store) DeleteEventPosition(ctx context.Context, id int64) error { return nil }

func (s *Store) CreateEventSignup(ctx context.Context, positionID, staffID, bracketID int64) (int64, error) {
	return s.id(), nil
}

func (s *Store) DeleteEventSignup(ctx context.Context, id int64) error { return nil }

func (s *Store) UpdateEventSystem(ctx context.Context, rec models.EventSystemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.System = rec
	return nil
}

// Poster records published views and answers with sequential message ids.
type Poster struct {
	mu        sync.Mutex
	Published []scheduling.PostView
	Edited    []scheduling.PostView
}

var _ scheduling.Poster = (*Poster)(nil)

func (p *Poster) Publish(ctx context.Context, channelID string, view scheduling.PostView) (scheduling.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Published = append(p.Published, view)
	return scheduling.MessageRef{GuildID: "1", ChannelID: channelID, MessageID: strconv.Itoa(9000 + len(p.Published))}, nil
}

func (p *Poster) Edit(ctx context.Context, ref scheduling.MessageRef, view scheduling.PostView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Edited = append(p.Edited, view)
	return nil
}

func (p *Poster) Delete(ctx context.Context, ref scheduling.MessageRef) error { return nil }
