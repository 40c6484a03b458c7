package metacache

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPutAndGet(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "cache.json"), nil)

	key := Key{Kind: KindVintage, ID: "166888"}
	record := Record{
		WineID:     "5432",
		WineName:   "Sassicaia",
		WineryID:   "101",
		WineryName: "Tenuta San Guido",
		Year:       "2016",
	}
	cache.Put(key, record)

	found, ok := cache.Get(key)
	if !ok {
		t.Fatal("Get failed to find stored record")
	}
	if found.WineName != record.WineName {
		t.Errorf("WineName mismatch: got %q, want %q", found.WineName, record.WineName)
	}
	if found.Year != record.Year {
		t.Errorf("Year mismatch: got %q, want %q", found.Year, record.Year)
	}
}

func TestKindsNeverCollide(t *testing.T) {
	cache := New("", nil)

	cache.Put(Key{Kind: KindWine, ID: "42"}, Record{WineName: "wine record"})
	cache.Put(Key{Kind: KindVintage, ID: "42"}, Record{WineName: "vintage record"})

	wine, ok := cache.Get(Key{Kind: KindWine, ID: "42"})
	if !ok || wine.WineName != "wine record" {
		t.Errorf("wine:42 = %+v, ok=%v", wine, ok)
	}
	vintage, ok := cache.Get(Key{Kind: KindVintage, ID: "42"})
	if !ok || vintage.WineName != "vintage record" {
		t.Errorf("vintage:42 = %+v, ok=%v", vintage, ok)
	}
}

func TestFlushAndReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	first := New(path, nil)
	first.Put(Key{Kind: KindVintage, ID: "1"}, Record{WineID: "10", WineName: "Barolo", Year: "2015"})
	first.Put(Key{Kind: KindWine, ID: "10"}, Record{WineID: "10", WineName: "Barolo", WineryName: "Vietti"})
	if err := first.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	second := New(path, nil)
	if second.Len() != 2 {
		t.Fatalf("reloaded cache should have 2 entries, got %d", second.Len())
	}
	record, ok := second.Get(Key{Kind: KindVintage, ID: "1"})
	if !ok {
		t.Fatal("vintage:1 missing after reload")
	}
	if record.Year != "2015" || record.WineName != "Barolo" {
		t.Errorf("record mismatch after reload: %+v", record)
	}
}

func TestFlushWithoutChangesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	cache := New(path, nil)
	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("flush with no entries should not create the cache file")
	}
}

func TestEmptyPathIsEphemeral(t *testing.T) {
	cache := New("", nil)

	cache.Put(Key{Kind: KindWine, ID: "1"}, Record{WineName: "ephemeral"})
	if err := cache.Flush(); err != nil {
		t.Errorf("Flush with empty path should not error: %v", err)
	}
	if _, ok := cache.Get(Key{Kind: KindWine, ID: "1"}); !ok {
		t.Error("in-memory entries should still be readable")
	}
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("not valid json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	cache := New(path, nil)
	if cache.Len() != 0 {
		t.Errorf("corrupt cache should start empty, got %d entries", cache.Len())
	}

	cache.Put(Key{Kind: KindVintage, ID: "9"}, Record{Year: "2020"})
	if err := cache.Flush(); err != nil {
		t.Errorf("Flush should recover from corrupt file: %v", err)
	}
}

func TestMalformedKeysSkippedOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	contents := `{"vintage:1": {"year": "2001"}, "nocolon": {"year": "x"}, "grape:2": {"year": "y"}}`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write cache file: %v", err)
	}

	cache := New(path, nil)
	if cache.Len() != 1 {
		t.Fatalf("only the well-formed key should load, got %d entries", cache.Len())
	}
	if _, ok := cache.Get(Key{Kind: KindVintage, ID: "1"}); !ok {
		t.Error("vintage:1 should have loaded")
	}
}

func TestRemoveAndClear(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "cache.json"), nil)

	key := Key{Kind: KindWine, ID: "7"}
	cache.Put(key, Record{WineName: "to remove"})

	if err := cache.Remove(key); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := cache.Remove(key); err == nil {
		t.Error("Remove of absent key should error")
	}

	cache.Put(key, Record{})
	cache.Clear()
	if cache.Len() != 0 {
		t.Errorf("Clear should empty the cache, got %d entries", cache.Len())
	}
}

func TestConcurrentAccess(t *testing.T) {
	cache := New(filepath.Join(t.TempDir(), "cache.json"), nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := Key{Kind: KindVintage, ID: "shared"}
			for range 100 {
				cache.Put(key, Record{Year: "2020"})
				if record, ok := cache.Get(key); ok && record.Year != "2020" {
					t.Errorf("worker %d read torn record: %+v", n, record)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if err := cache.Flush(); err != nil {
		t.Fatalf("Flush after concurrent writes failed: %v", err)
	}
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{"wine:123", Key{Kind: KindWine, ID: "123"}, false},
		{"vintage:9:9", Key{Kind: KindVintage, ID: "9:9"}, false},
		{"wine:", Key{}, true},
		{"123", Key{}, true},
		{"grape:123", Key{}, true},
	}

	for _, tc := range cases {
		got, err := ParseKey(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseKey(%q) should fail", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseKey(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKey(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}
