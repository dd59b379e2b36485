package catalog

import (
	"context"
	"testing"

	"github.com/rootzsu/servicebot/internal/models"
	"github.com/rootzsu/servicebot/internal/storage"
)

type storeStub struct {
	services []models.Service
	inserts  int
}

func (s *storeStub) List(context.Context) ([]models.Service, error) {
	return append([]models.Service(nil), s.services...), nil
}

func (s *storeStub) GetByID(_ context.Context, id int64) (models.Service, error) {
	for _, svc := range s.services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return models.Service{}, storage.ErrServiceNotFound
}

func (s *storeStub) Count(context.Context) (int, error) {
	return len(s.services), nil
}

func (s *storeStub) InsertBatch(_ context.Context, services []models.Service) error {
	s.inserts++
	for i, svc := range services {
		svc.ID = int64(len(s.services) + i + 1)
		s.services = append(s.services, svc)
	}
	return nil
}

func (s *storeStub) Update(_ context.Context, svc models.Service) error {
	for i := range s.services {
		if s.services[i].ID == svc.ID {
			s.services[i] = svc
			return nil
		}
	}
	return storage.ErrServiceNotFound
}

func TestSeedFillsEmptyStore(t *testing.T) {
	store := &storeStub{}
	svc := NewService(store)

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if got, want := len(store.services), len(DefaultServices()); got != want {
		t.Fatalf("seeded %d services, want %d", got, want)
	}
	if store.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", store.inserts)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	store := &storeStub{}
	svc := NewService(store)

	for i := 0; i < 3; i++ {
		if err := svc.Seed(context.Background()); err != nil {
			t.Fatalf("seed pass %d: %v", i, err)
		}
	}
	if got, want := len(store.services), len(DefaultServices()); got != want {
		t.Fatalf("after repeated seeds: %d services, want %d", got, want)
	}
	if store.inserts != 1 {
		t.Fatalf("inserts = %d, want exactly 1", store.inserts)
	}
}

func TestSeedSkipsPopulatedStore(t *testing.T) {
	store := &storeStub{services: []models.Service{{ID: 1, Name: "custom"}}}
	svc := NewService(store)

	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(store.services) != 1 || store.inserts != 0 {
		t.Fatalf("seed must be a no-op on a populated store")
	}
}
