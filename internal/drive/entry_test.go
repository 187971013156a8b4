package drive

import (
	"os"
	"testing"
)

func TestRoot(t *testing.T) {
	root := Root()
	if root.ID != RootID || !root.IsDir() || root.ParentID != "" {
		t.Errorf("unexpected root: %+v", root)
	}
	if root.Mode()&os.ModeDir == 0 {
		t.Error("root mode should be a directory")
	}
}

func TestEntryFileInfo(t *testing.T) {
	e := Entry{ID: "f1", FileName: "a.txt", Bytes: 42}
	var info os.FileInfo = e
	if info.Name() != "a.txt" || info.Size() != 42 || info.IsDir() {
		t.Errorf("unexpected file info: %v %v %v", info.Name(), info.Size(), info.IsDir())
	}
	if info.Mode().IsDir() {
		t.Error("file mode should not be a directory")
	}
}

func TestFind(t *testing.T) {
	entries := []Entry{
		{ID: "1", FileName: "docs", Directory: true},
		{ID: "2", FileName: "photos", Directory: true},
	}
	if e, ok := Find(entries, "photos"); !ok || e.ID != "2" {
		t.Errorf("Find(photos) = %+v, %v", e, ok)
	}
	if _, ok := Find(entries, "music"); ok {
		t.Error("Find(music) should miss")
	}
}
