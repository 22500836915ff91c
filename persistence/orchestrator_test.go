package persistence

import (
	"testing"

	"github.com/sushrut141/dharmadb/codec"
	"github.com/sushrut141/dharmadb/config"
	"github.com/sushrut141/dharmadb/wal"
)

const tombstone = "\x00__tombstone__\x00"

func valueEqual(a, b string) bool { return a == b }

func testOptions(dataDir string) config.Options[string, string] {
	return config.New[string, string](
		dataDir,
		config.WithCodecs[string, string](codec.String, codec.String, codec.StringLess),
		config.WithTombstone[string, string](tombstone, valueEqual),
		config.WithBlockSizeInBytes[string, string](256),
		config.WithMemtableSizeInBytes[string, string](1<<20),
		config.WithSparseIndexSamplingRate[string, string](1),
		config.WithCompactionThreshold[string, string](4),
	)
}

func TestPutAndGet(t *testing.T) {
	dir := t.TempDir()
	o, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	if err := o.Put("a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := o.Get("a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Get(a) = (%q, %v, %v), want (1, true, nil)", v, ok, err)
	}
	if _, ok, err := o.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestDeleteHidesKeyFromMemtable(t *testing.T) {
	dir := t.TempDir()
	o, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	o.Put("a", "1")
	o.Delete("a")
	if _, ok, err := o.Get("a"); err != nil || ok {
		t.Fatalf("Get(a) after delete = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestFlushWritesSSTableAndServesFromDisk(t *testing.T) {
	dir := t.TempDir()
	o, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	for _, k := range []string{"b", "a", "c"} {
		if err := o.Put(k, k+"-value"); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	if err := o.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if o.mem.Len() != 0 {
		t.Fatalf("expected memtable to be empty after flush, got %d entries", o.mem.Len())
	}

	v, ok, err := o.Get("a")
	if err != nil || !ok || v != "a-value" {
		t.Fatalf("Get(a) after flush = (%q, %v, %v), want (a-value, true, nil)", v, ok, err)
	}
}

func TestDeleteSurvivesFlushAsTombstone(t *testing.T) {
	dir := t.TempDir()
	o, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	o.Put("a", "1")
	if err := o.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	o.Delete("a")
	if err := o.Flush(); err != nil {
		t.Fatalf("second Flush: %v", err)
	}

	if _, ok, err := o.Get("a"); err != nil || ok {
		t.Fatalf("Get(a) after tombstone flush = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestAutomaticFlushOnMemtableThreshold(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.MemtableSizeInBytes = 1 // flush after the very first insert
	o, err := Open[string, string](opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	if err := o.Put("a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if o.mem.Len() != 0 {
		t.Fatalf("expected auto-flush to empty the memtable, got %d entries", o.mem.Len())
	}
	v, ok, err := o.Get("a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("Get(a) = (%q, %v, %v), want (1, true, nil)", v, ok, err)
	}
}

func TestCompactionRunsAtThreshold(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	opts.CompactionThreshold = 2
	o, err := Open[string, string](opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer o.Close()

	o.Put("a", "old")
	if err := o.Flush(); err != nil {
		t.Fatalf("Flush 1: %v", err)
	}
	o.Put("a", "new")
	o.Put("b", "1")
	if err := o.Flush(); err != nil {
		t.Fatalf("Flush 2: %v", err)
	}

	if o.tableCount != 1 {
		t.Fatalf("expected compaction to reset table count to 1, got %d", o.tableCount)
	}
	v, ok, err := o.Get("a")
	if err != nil || !ok || v != "new" {
		t.Fatalf("Get(a) after compaction = (%q, %v, %v), want (new, true, nil)", v, ok, err)
	}
}

func TestOpenWithoutBootstrapFailsOnDirtyPath(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	o, err := Open[string, string](opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	o.Put("a", "1") // leaves a WAL on disk, engine is never cleanly closed

	noBootstrap := opts
	noBootstrap.Bootstrap = false
	if _, err := Open[string, string](noBootstrap); err == nil {
		t.Fatal("expected Open with Bootstrap=false to fail on an existing WAL")
	}
}

func TestRecoverReplaysUncommittedWrites(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(dir)
	o, err := Open[string, string](opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	o.Put("a", "1")
	o.Put("b", "2")
	// simulate a crash: no Close, WAL is left behind with both entries.

	recovered, err := Open[string, string](opts)
	if err != nil {
		t.Fatalf("Open after crash: %v", err)
	}
	defer recovered.Close()

	for _, tc := range []struct{ key, want string }{{"a", "1"}, {"b", "2"}} {
		v, ok, err := recovered.Get(tc.key)
		if err != nil || !ok || v != tc.want {
			t.Fatalf("Get(%s) after recovery = (%q, %v, %v), want (%q, true, nil)", tc.key, v, ok, err, tc.want)
		}
	}
}

func TestCloseDeletesWal(t *testing.T) {
	dir := t.TempDir()
	o, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	o.Put("a", "1")
	if err := o.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if wal.Exists(dir) {
		t.Fatal("expected Close to delete the WAL file")
	}

	reopened, err := Open[string, string](testOptions(dir))
	if err != nil {
		t.Fatalf("reopen after clean close: %v", err)
	}
	defer reopened.Close()
	if _, ok, _ := reopened.Get("a"); !ok {
		t.Fatal("expected a's value to have been flushed to disk before clean close")
	}
}
