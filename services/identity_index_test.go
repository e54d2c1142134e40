package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/camden-git/facetrack/repository"
)

func TestIdentityIndex_ReloadIsIdempotent(t *testing.T) {
	src := &staticSource{rows: []repository.IdentityDescriptor{
		encodeRow(t, 1, 1, "Ana", "Torres", classical(0.1, 0.2)),
		encodeRow(t, 2, 2, "Luis", "Mora", classical(0.3, 0.4)),
	}}
	ix := NewIdentityIndex(src)
	ctx := context.Background()

	if _, err := ix.Reload(ctx); err != nil {
		t.Fatalf("first reload failed: %v", err)
	}
	first := ix.Entries()

	if _, err := ix.Reload(ctx); err != nil {
		t.Fatalf("second reload failed: %v", err)
	}
	second := ix.Entries()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("entries changed across no-op reload:\n%v\n%v", first, second)
	}
	if first[0].DisplayName != "Ana Torres" || first[1].PersonID != 2 {
		t.Errorf("unexpected entries %+v", first)
	}
}

func TestIdentityIndex_SkipsCorruptDescriptors(t *testing.T) {
	rows := []repository.IdentityDescriptor{
		encodeRow(t, 1, 1, "Ana", "Torres", classical(0.1, 0.2)),
		{EmbeddingID: 2, PersonID: 2, GivenName: "Rota", FamilyName: "Fila", Data: "[0.1, oops", Strategy: "classical"},
		{EmbeddingID: 3, PersonID: 3, GivenName: "Sin", FamilyName: "Tipo", Data: "[0.5]", Strategy: "eigenfaces"},
		{EmbeddingID: 4, PersonID: 4, GivenName: "Vacia", FamilyName: "Fila", Data: "[]", Strategy: "learned"},
		encodeRow(t, 5, 5, "Luis", "Mora", learned(0.3, 0.4)),
	}
	ix := loadedIndex(t, rows...)

	entries := ix.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 valid entries, got %d", len(entries))
	}
	if entries[0].PersonID != 1 || entries[1].PersonID != 5 {
		t.Errorf("expected persons 1 and 5 in order, got %d and %d", entries[0].PersonID, entries[1].PersonID)
	}
}

func TestIdentityIndex_SourceErrorKeepsSnapshot(t *testing.T) {
	src := &staticSource{rows: []repository.IdentityDescriptor{encodeRow(t, 1, 1, "Ana", "Torres", classical(1))}}
	ix := NewIdentityIndex(src)
	ctx := context.Background()
	if _, err := ix.Reload(ctx); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	src.set(nil, errors.New("database is locked"))
	if _, err := ix.Reload(ctx); err == nil {
		t.Fatal("expected reload error")
	}
	if ix.Len() != 1 {
		t.Errorf("expected previous snapshot to survive, got %d entries", ix.Len())
	}
}

func TestIdentityIndex_EmptyUntilLoaded(t *testing.T) {
	ix := NewIdentityIndex(&staticSource{})
	if !ix.IsEmpty() {
		t.Error("expected a fresh index to be empty")
	}
	if _, err := ix.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !ix.IsEmpty() {
		t.Error("expected index over an empty store to be empty")
	}
}

func TestIdentityIndex_ReadsDuringReloadSeeWholeSnapshots(t *testing.T) {
	small := []repository.IdentityDescriptor{encodeRow(t, 1, 1, "Ana", "Torres", classical(1))}
	large := []repository.IdentityDescriptor{
		encodeRow(t, 1, 1, "Ana", "Torres", classical(1)),
		encodeRow(t, 2, 2, "Luis", "Mora", classical(2)),
		encodeRow(t, 3, 3, "Eva", "Ruiz", classical(3)),
	}
	src := &staticSource{rows: small}
	ix := NewIdentityIndex(src)
	ctx := context.Background()
	ix.Reload(ctx)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if i%2 == 0 {
				src.set(large, nil)
			} else {
				src.set(small, nil)
			}
			ix.Reload(ctx)
		}
		close(stop)
	}()

	for {
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
		n := len(ix.Entries())
		if n != len(small) && n != len(large) {
			t.Fatalf("observed a partial snapshot of %d entries", n)
		}
	}
}
