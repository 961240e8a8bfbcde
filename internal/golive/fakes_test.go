package golive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"shipshape-api-server/internal/events"
	"shipshape-api-server/internal/models"
	"shipshape-api-server/internal/scheduler"
)

// memStore is an in-memory stand-in for the Mongo store, implementing every port.
type memStore struct {
	mu            sync.Mutex
	shipments     map[string]*models.Shipment
	registrations map[string][]models.Registration

	getErr       error
	setTaskErr   error
	markLiveErr  error
	listRegErr   error
	findDueErr   error
	batchErrs    []error // consumed one per MarkLiveBatch call
	markLiveHits int
	batchCalls   [][]string
	// beforeBatch runs under the lock, ahead of MarkLiveBatch, to model a concurrent writer.
	beforeBatch func(m *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		shipments:     map[string]*models.Shipment{},
		registrations: map[string][]models.Registration{},
	}
}

func (m *memStore) put(s models.Shipment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.shipments[s.ID] = &cp
}

func (m *memStore) snapshot(id string) models.Shipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.shipments[id]
}

func (m *memStore) register(shipmentID string, carrierIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range carrierIDs {
		m.registrations[shipmentID] = append(m.registrations[shipmentID], models.Registration{
			ID:         models.RegistrationID(shipmentID, c),
			ShipmentID: shipmentID,
			CarrierID:  c,
		})
	}
}

func (m *memStore) GetShipment(ctx context.Context, id string) (*models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.shipments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SetGoLiveTask(ctx context.Context, id string, revision int64, taskName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setTaskErr != nil {
		return m.setTaskErr
	}
	s, ok := m.shipments[id]
	if !ok || s.Revision != revision {
		return models.ErrRevisionConflict
	}
	s.GoLiveTaskName = taskName
	return nil
}

func (m *memStore) MarkLive(ctx context.Context, id string, revision int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markLiveErr != nil {
		return false, m.markLiveErr
	}
	s, ok := m.shipments[id]
	if !ok || s.Status != models.ShipmentScheduled || s.Revision != revision {
		return false, nil
	}
	m.markLiveHits++
	s.Status = models.ShipmentLive
	s.GoLiveTaskName = ""
	s.Revision++
	return true, nil
}

func (m *memStore) ListRegistrations(ctx context.Context, shipmentID string) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listRegErr != nil {
		return nil, m.listRegErr
	}
	return append([]models.Registration(nil), m.registrations[shipmentID]...), nil
}

func (m *memStore) FindDueScheduled(ctx context.Context, now time.Time) ([]models.Shipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findDueErr != nil {
		return nil, m.findDueErr
	}
	var out []models.Shipment
	for _, s := range m.shipments {
		if s.Status == models.ShipmentScheduled && s.GoLiveAt != nil && !s.GoLiveAt.After(now) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) MarkLiveBatch(ctx context.Context, ids []string, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls = append(m.batchCalls, ids)
	if m.beforeBatch != nil {
		m.beforeBatch(m)
	}
	if len(m.batchErrs) > 0 {
		err := m.batchErrs[0]
		m.batchErrs = m.batchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	var flipped []string
	for _, id := range ids {
		s, ok := m.shipments[id]
		if !ok || s.Status != models.ShipmentScheduled || s.GoLiveAt == nil || s.GoLiveAt.After(now) {
			continue
		}
		s.Status = models.ShipmentLive
		s.GoLiveTaskName = ""
		s.Revision++
		flipped = append(flipped, id)
	}
	return flipped, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	created   []scheduler.Task
	deleted   []string
	live      map[string]bool
	createErr error
	deleteErr error
	seq       int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: map[string]bool{}}
}

func (f *fakeScheduler) CreateTask(ctx context.Context, task scheduler.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	name := fmt.Sprintf("%s-%d", task.Name, f.seq)
	task.Name = name
	f.created = append(f.created, task)
	f.live[name] = true
	return name, nil
}

func (f *fakeScheduler) DeleteTask(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.live[name] {
		return scheduler.ErrTaskNotFound
	}
	delete(f.live, name)
	return nil
}

func (f *fakeScheduler) outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

type sentNotification struct {
	RecipientID string
	Message     string
	Link        string
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []sentNotification
	failFor map[string]bool
}

func (f *fakeNotifier) Emit(ctx context.Context, recipientID, message, link string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[recipientID] {
		return fmt.Errorf("insert notification: boom")
	}
	f.sent = append(f.sent, sentNotification{RecipientID: recipientID, Message: message, Link: link})
	return nil
}

func (f *fakeNotifier) to(recipientID string) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.LifecycleEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev events.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Event)
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
