package storage

import (
	"errors"
	"fmt"
	"testing"
)

func TestPrefixDB_GetPutDelete(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("ns1/"))

	if err := db.Put([]byte("key1"), []byte("val1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("key1"))
	if err != nil || string(got) != "val1" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if raw, _ := inner.Get([]byte("ns1/key1")); string(raw) != "val1" {
		t.Fatalf("inner key not namespaced, got %q", raw)
	}
	if err := db.Delete([]byte("key1")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := db.Has([]byte("key1")); ok {
		t.Fatal("Has after delete = true, want false")
	}
	if _, err := db.Get([]byte("key1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestPrefixDB_Isolation(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	dbA.Put([]byte("key"), []byte("fromA"))
	dbB.Put([]byte("key"), []byte("fromB"))

	if got, _ := dbA.Get([]byte("key")); string(got) != "fromA" {
		t.Fatalf("A.Get = %q, want %q", got, "fromA")
	}
	if got, _ := dbB.Get([]byte("key")); string(got) != "fromB" {
		t.Fatalf("B.Get = %q, want %q", got, "fromB")
	}
	if ok, _ := dbA.Has([]byte("b/key")); ok {
		t.Fatal("A should not see B's raw key")
	}
}

func TestPrefixDB_ForEachStripsPrefix(t *testing.T) {
	db := NewPrefixDB(NewMemory(), []byte("net/"))
	db.Put([]byte("c/k2"), []byte("v2"))
	db.Put([]byte("c/k1"), []byte("v1"))
	db.Put([]byte("l/k3"), []byte("v3"))

	var keys []string
	err := db.ForEach([]byte("c/"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if len(keys) != 2 || keys[0] != "c/k1" || keys[1] != "c/k2" {
		t.Fatalf("ForEach keys = %v, want [c/k1 c/k2]", keys)
	}
}

func TestPrefixDB_DeleteAll(t *testing.T) {
	inner := NewMemory()
	dbA := NewPrefixDB(inner, []byte("a/"))
	dbB := NewPrefixDB(inner, []byte("b/"))

	for i := 0; i < 3; i++ {
		dbA.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"))
	}
	dbB.Put([]byte("k0"), []byte("other"))

	if err := dbA.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	for i := 0; i < 3; i++ {
		if ok, _ := dbA.Has([]byte(fmt.Sprintf("k%d", i))); ok {
			t.Fatalf("A still has k%d after DeleteAll", i)
		}
	}
	if got, err := dbB.Get([]byte("k0")); err != nil || string(got) != "other" {
		t.Fatalf("B.Get after A.DeleteAll = %q, %v", got, err)
	}

	// DeleteAll on an empty namespace should not error.
	if err := NewPrefixDB(inner, []byte("empty/")).DeleteAll(); err != nil {
		t.Fatalf("DeleteAll on empty: %v", err)
	}
}

func TestPrefixDB_Batch(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("p/"))

	b := db.NewBatch()
	b.Put([]byte("x"), []byte("1"))
	if ok, _ := db.Has([]byte("x")); ok {
		t.Fatal("batch write visible before Commit")
	}
	if err := b.Commit(); err != nil {
		t.Fatal(err)
	}
	if got, _ := inner.Get([]byte("p/x")); string(got) != "1" {
		t.Fatalf("inner p/x = %q, want 1", got)
	}
}

func TestPrefixDB_CloseIsNoop(t *testing.T) {
	inner := NewMemory()
	db := NewPrefixDB(inner, []byte("x/"))
	db.Put([]byte("key"), []byte("val"))

	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got, err := inner.Get([]byte("x/key")); err != nil || string(got) != "val" {
		t.Fatalf("inner.Get after Close = %q, %v", got, err)
	}
}
