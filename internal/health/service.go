// Package health tracks connectivity of routing targets and the Plex
// account. All state is in-memory and resets on application restart.
package health

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Service manages the health state of all tracked items.
type Service struct {
	items       map[HealthCategory]map[string]*HealthItem
	mu          sync.RWMutex
	broadcaster Broadcaster
	logger      zerolog.Logger
}

// NewService creates a new health service.
func NewService(logger zerolog.Logger) *Service {
	s := &Service{
		items:  make(map[HealthCategory]map[string]*HealthItem),
		logger: logger.With().Str("component", "health").Logger(),
	}

	for _, cat := range AllCategories() {
		s.items[cat] = make(map[string]*HealthItem)
	}

	return s
}

// SetBroadcaster sets the WebSocket broadcaster for real-time updates.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// RegisterItem adds a new item to health tracking with OK status.
func (s *Service) RegisterItem(category HealthCategory, id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[category][id]; ok {
		existing.Name = name
		return
	}

	item := &HealthItem{
		ID:       id,
		Category: category,
		Name:     name,
		Status:   StatusOK,
	}
	s.items[category][id] = item

	s.broadcastUpdate(item)
}

// UnregisterItem removes an item from health tracking.
func (s *Service) UnregisterItem(category HealthCategory, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items[category], id)
}

// SetError marks an item as failing.
func (s *Service) SetError(category HealthCategory, id, message string) {
	s.setStatus(category, id, StatusError, message)
}

// SetWarning marks an item as degraded.
func (s *Service) SetWarning(category HealthCategory, id, message string) {
	s.setStatus(category, id, StatusWarning, message)
}

// ClearStatus marks an item healthy again.
func (s *Service) ClearStatus(category HealthCategory, id string) {
	s.setStatus(category, id, StatusOK, "")
}

func (s *Service) setStatus(category HealthCategory, id string, status HealthStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.items[category][id]
	if !exists {
		return
	}
	if item.Status == status && item.Message == message {
		return
	}

	now := time.Now().UTC()
	item.Status = status
	item.Message = message
	item.Timestamp = &now

	if status != StatusOK {
		s.logger.Warn().
			Str("category", string(category)).
			Str("id", id).
			Str("status", string(status)).
			Str("message", message).
			Msg("Health status changed")
	}

	s.broadcastUpdate(item)
}

// Response returns all tracked items grouped by category.
func (s *Service) Response() HealthResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return HealthResponse{
		Instances: s.itemsFor(CategoryInstances),
		Plex:      s.itemsFor(CategoryPlex),
	}
}

// HasIssues reports whether any item is not OK.
func (s *Service) HasIssues() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, category := range s.items {
		for _, item := range category {
			if item.Status != StatusOK {
				return true
			}
		}
	}
	return false
}

func (s *Service) itemsFor(category HealthCategory) []HealthItem {
	items := make([]HealthItem, 0, len(s.items[category]))
	for _, item := range s.items[category] {
		items = append(items, *item)
	}
	return items
}

func (s *Service) broadcastUpdate(item *HealthItem) {
	if s.broadcaster == nil {
		return
	}
	_ = s.broadcaster.Broadcast("health:update", HealthUpdatePayload{
		Category:  item.Category,
		ID:        item.ID,
		Name:      item.Name,
		Status:    item.Status,
		Message:   item.Message,
		Timestamp: item.Timestamp,
	})
}
