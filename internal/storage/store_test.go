// internal/storage/store_test.go
package storage

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	in := doc{Name: "chapters", Count: 3}
	if err := store.SaveJSON("stories/1", "chapters.json", &in); err != nil {
		t.Fatalf("saving: %v", err)
	}

	var out doc
	if err := store.LoadJSON("stories/1", "chapters.json", &out); err != nil {
		t.Fatalf("loading: %v", err)
	}
	if out != in {
		t.Errorf("round trip: got %+v, want %+v", out, in)
	}
}

func TestSaveInvalidatesCache(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.SaveJSON("stories/1", "doc.json", &doc{Name: "v1"}); err != nil {
		t.Fatalf("saving: %v", err)
	}
	var first doc
	if err := store.LoadJSON("stories/1", "doc.json", &first); err != nil {
		t.Fatalf("loading: %v", err)
	}

	// Overwrite and read again; the cached v1 must not come back.
	if err := store.SaveJSON("stories/1", "doc.json", &doc{Name: "v2"}); err != nil {
		t.Fatalf("saving: %v", err)
	}
	var second doc
	if err := store.LoadJSON("stories/1", "doc.json", &second); err != nil {
		t.Fatalf("loading: %v", err)
	}
	if second.Name != "v2" {
		t.Errorf("got %q after overwrite, want v2", second.Name)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	base := t.TempDir()
	store, err := NewStore(base)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.SaveJSON("stories/1", "doc.json", &doc{Name: "x"}); err != nil {
		t.Fatalf("saving: %v", err)
	}

	if _, err := os.Stat(filepath.Join(base, "stories/1", "doc.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind after save")
	}
}

func TestDeleteDirPurgesCache(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	if err := store.SaveJSON("stories/1", "doc.json", &doc{Name: "x"}); err != nil {
		t.Fatalf("saving: %v", err)
	}
	var warm doc
	if err := store.LoadJSON("stories/1", "doc.json", &warm); err != nil {
		t.Fatalf("loading: %v", err)
	}

	if err := store.DeleteDir("stories/1"); err != nil {
		t.Fatalf("deleting dir: %v", err)
	}

	var gone doc
	if err := store.LoadJSON("stories/1", "doc.json", &gone); err == nil {
		t.Error("load after delete must fail, not serve the cache")
	}
	if store.FileExists("stories/1", "doc.json") {
		t.Error("file still exists after DeleteDir")
	}
}

func TestListDirs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	for _, id := range []string{"1", "2", "7"} {
		if err := store.SaveJSON("stories/"+id, "story.json", &doc{Name: id}); err != nil {
			t.Fatalf("saving: %v", err)
		}
	}

	dirs, err := store.ListDirs("stories")
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(dirs) != 3 {
		t.Errorf("got %d dirs, want 3: %v", len(dirs), dirs)
	}
}
