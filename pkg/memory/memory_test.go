package memory

import (
	"context"
	"testing"
)

type fakeStorage struct {
	saved map[string]map[string]interface{}
}

func (f *fakeStorage) SaveMemory(ctx context.Context, data map[string]map[string]interface{}) error {
	f.saved = data
	return nil
}

func (f *fakeStorage) LoadMemory(ctx context.Context) (map[string]map[string]interface{}, error) {
	return f.saved, nil
}

func TestSetDeepCopiesValue(t *testing.T) {
	m := New(nil)
	original := map[string]interface{}{"nested": "a"}
	if err := m.Set("k", original, CollectionPrivate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	original["nested"] = "mutated"

	got, _ := m.Get("k", CollectionPrivate)
	gotMap := got.(map[string]interface{})
	if gotMap["nested"] != "a" {
		t.Fatalf("expected stored value unaffected by later mutation, got %v", gotMap["nested"])
	}
}

func TestGetReturnsStoredReference(t *testing.T) {
	m := New(nil)
	_ = m.Set("k", "v", CollectionUsers)

	v1, _ := m.Get("k", CollectionUsers)
	v2, _ := m.Get("k", CollectionUsers)
	if v1 != v2 {
		t.Fatal("expected repeated Get to return the same stored value")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	storage := &fakeStorage{}
	m := New(storage)
	_ = m.Set("alice", map[string]interface{}{"age": float64(30)}, CollectionUsers)

	if err := m.Save(context.Background()); err != nil {
		t.Fatalf("save error: %v", err)
	}

	fresh := New(storage)
	if err := fresh.Load(context.Background()); err != nil {
		t.Fatalf("load error: %v", err)
	}

	got, ok := fresh.Get("alice", CollectionUsers)
	if !ok {
		t.Fatal("expected alice to be present after load")
	}
	gotMap := got.(map[string]interface{})
	if gotMap["age"] != float64(30) {
		t.Fatalf("unexpected round-tripped value: %+v", gotMap)
	}
}

func TestSaveWithoutStorageFails(t *testing.T) {
	m := New(nil)
	if err := m.Save(context.Background()); err == nil {
		t.Fatal("expected an error saving without a storage adapter")
	}
}

func TestClearEmptiesAllCollections(t *testing.T) {
	m := New(nil)
	_ = m.Set("k", "v", CollectionRooms)
	m.Clear()

	if _, ok := m.Get("k", CollectionRooms); ok {
		t.Fatal("expected collection to be empty after Clear")
	}
}

func TestUnsetRemovesKey(t *testing.T) {
	m := New(nil)
	_ = m.Set("k", "v", CollectionPrivate)
	m.Unset("k", CollectionPrivate)

	if _, ok := m.Get("k", CollectionPrivate); ok {
		t.Fatal("expected key to be removed")
	}
}
