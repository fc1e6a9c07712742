package service

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"github.com/joeblew999/tilegrid/internal/cover"
	"github.com/joeblew999/tilegrid/internal/navigate"
)

// MapService owns the open MapViews.
type MapService struct {
	coverer  cover.Coverer
	recorder navigate.Recorder
	log      logrus.FieldLogger

	mu    sync.RWMutex
	views map[string]*MapView
}

// NewMapService creates a map registry. recorder may be nil.
func NewMapService(c cover.Coverer, recorder navigate.Recorder, log logrus.FieldLogger) *MapService {
	return &MapService{
		coverer:  c,
		recorder: recorder,
		log:      log,
		views:    make(map[string]*MapView),
	}
}

// Open creates a MapView with a fresh ID. Its overlay starts empty
// until the first viewport arrives.
func (s *MapService) Open() (*MapView, error) {
	id, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generating map id: %w", err)
	}
	m := newMapView(id, s.coverer, s.recorder, s.log)

	s.mu.Lock()
	s.views[id] = m
	s.mu.Unlock()

	s.log.WithField("map", id).Info("map opened")
	return m, nil
}

// Get returns an open MapView.
func (s *MapService) Get(id string) (*MapView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.views[id]
	return m, ok
}

// Len returns the number of open maps.
func (s *MapService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views)
}

// Close closes and forgets one map.
func (s *MapService) Close(id string) error {
	s.mu.Lock()
	m, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("map %q not found", id)
	}
	m.Close()
	s.log.WithField("map", id).Info("map closed")
	return nil
}

// CloseAll closes every map.
func (s *MapService) CloseAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*MapView)
	s.mu.Unlock()

	for _, m := range views {
		m.Close()
	}
}
