package state

import (
	"errors"
	"sync"
	"testing"
)

type draft struct {
	City  string
	Count int
}

func TestGetBeforeReset(t *testing.T) {
	s := NewStore[draft]()
	if _, err := s.Get(1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if s.Has(1) {
		t.Fatal("Has should be false before Reset")
	}
}

func TestResetWipesPreviousValue(t *testing.T) {
	s := NewStore[draft]()
	v := s.Reset(7)
	v.City = "Paris"

	got, err := s.Get(7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.City != "Paris" {
		t.Fatalf("city = %q", got.City)
	}

	fresh := s.Reset(7)
	if fresh.City != "" {
		t.Fatalf("reset should produce empty value, got %+v", fresh)
	}
	got, _ = s.Get(7)
	if got != fresh {
		t.Fatal("Get should return the value created by the latest Reset")
	}
}

func TestUsersAreIsolated(t *testing.T) {
	s := NewStore[draft]()
	a := s.Reset(1)
	b := s.Reset(2)
	a.City = "Paris"
	b.City = "Rome"

	got1, _ := s.Get(1)
	got2, _ := s.Get(2)
	if got1.City != "Paris" || got2.City != "Rome" {
		t.Fatalf("cross contamination: %+v %+v", got1, got2)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d", s.Len())
	}

	s.Clear(1)
	if s.Has(1) {
		t.Fatal("cleared user still has a session")
	}
	if !s.Has(2) {
		t.Fatal("clearing one user removed another")
	}
}

func TestLockSerializesPerUser(t *testing.T) {
	s := NewStore[draft]()
	s.Reset(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(1)
			defer unlock()
			v, err := s.Get(1)
			if err != nil {
				t.Error(err)
				return
			}
			v.Count++
		}()
	}
	wg.Wait()

	v, _ := s.Get(1)
	if v.Count != 50 {
		t.Fatalf("count = %d, want 50", v.Count)
	}
}
