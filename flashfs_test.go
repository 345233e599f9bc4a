package flashfs

import (
	"errors"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeEngine is a scripted in-memory engine. It records every call it
// receives, detects overlapping calls, and can be told to fail specific
// operations.
type fakeEngine struct {
	mounted   bool
	formatted bool
	entries   map[string]*fakeEntry
	calls     []string
	failures  map[string]Code

	stall   time.Duration
	inCall  atomic.Bool
	overlap atomic.Bool
}

type fakeEntry struct {
	dir  bool
	data []byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		formatted: true,
		entries:   map[string]*fakeEntry{"/": {dir: true}},
		failures:  map[string]Code{},
	}
}

func (e *fakeEngine) enter(op, path string) {
	if !e.inCall.CompareAndSwap(false, true) {
		e.overlap.Store(true)
	}
	if e.stall > 0 {
		time.Sleep(e.stall)
	}
	if path == "" {
		e.calls = append(e.calls, op)
	} else {
		e.calls = append(e.calls, op+" "+path)
	}
}

func (e *fakeEngine) exit() {
	e.inCall.Store(false)
}

// fail returns the scripted code for "op path" or "op", if any.
func (e *fakeEngine) fail(op, path string) (Code, bool) {
	if c, ok := e.failures[op+" "+path]; ok {
		return c, true
	}
	c, ok := e.failures[op]
	return c, ok
}

func fakePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func parentOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		return "/"
	}
	return path[:i]
}

func (e *fakeEngine) Mount(cfg *Config) Code {
	e.enter("mount", "")
	defer e.exit()
	if c, ok := e.fail("mount", ""); ok {
		return c
	}
	if !e.formatted {
		return ErrCorrupt
	}
	e.mounted = true
	return OK
}

func (e *fakeEngine) Unmount() Code {
	e.enter("unmount", "")
	defer e.exit()
	if c, ok := e.fail("unmount", ""); ok {
		return c
	}
	e.mounted = false
	return OK
}

func (e *fakeEngine) Format(cfg *Config) Code {
	e.enter("format", "")
	defer e.exit()
	if c, ok := e.fail("format", ""); ok {
		return c
	}
	e.entries = map[string]*fakeEntry{"/": {dir: true}}
	e.formatted = true
	return OK
}

func (e *fakeEngine) Stat(path string) (Info, Code) {
	e.enter("stat", path)
	defer e.exit()
	if c, ok := e.fail("stat", path); ok {
		return Info{}, c
	}
	p := fakePath(path)
	ent, ok := e.entries[p]
	if !ok {
		return Info{}, ErrNoEntry
	}
	return e.infoFor(p, ent), OK
}

func (e *fakeEngine) infoFor(p string, ent *fakeEntry) Info {
	info := Info{Name: p[strings.LastIndexByte(p, '/')+1:], Type: TypeReg}
	if ent.dir {
		info.Type = TypeDir
	} else {
		info.Size = int64(len(ent.data))
	}
	if p == "/" {
		info.Name = "/"
	}
	return info
}

func (e *fakeEngine) Mkdir(path string) Code {
	e.enter("mkdir", path)
	defer e.exit()
	if c, ok := e.fail("mkdir", path); ok {
		return c
	}
	p := fakePath(path)
	if _, ok := e.entries[p]; ok {
		return ErrExists
	}
	parent, ok := e.entries[parentOf(p)]
	if !ok {
		return ErrNoEntry
	}
	if !parent.dir {
		return ErrNotDir
	}
	e.entries[p] = &fakeEntry{dir: true}
	return OK
}

func (e *fakeEngine) Remove(path string) Code {
	e.enter("remove", path)
	defer e.exit()
	if c, ok := e.fail("remove", path); ok {
		return c
	}
	p := fakePath(path)
	ent, ok := e.entries[p]
	if !ok {
		return ErrNoEntry
	}
	if p == "/" {
		return ErrInvalid
	}
	if ent.dir {
		for k := range e.entries {
			if strings.HasPrefix(k, p+"/") {
				return ErrNotEmpty
			}
		}
	}
	delete(e.entries, p)
	return OK
}

func (e *fakeEngine) ReadDir(path string) ([]Info, Code) {
	e.enter("readdir", path)
	defer e.exit()
	if c, ok := e.fail("readdir", path); ok {
		return nil, c
	}
	p := fakePath(path)
	ent, ok := e.entries[p]
	if !ok {
		return nil, ErrNoEntry
	}
	if !ent.dir {
		return nil, ErrNotDir
	}
	prefix := p + "/"
	if p == "/" {
		prefix = "/"
	}
	var infos []Info
	for k, child := range e.entries {
		if k == p || !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		infos = append(infos, e.infoFor(k, child))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, OK
}

func (e *fakeEngine) OpenFile(path string, flags OpenFlag) (EngineFile, Code) {
	e.enter("open", path)
	defer e.exit()
	if c, ok := e.fail("open", path); ok {
		return nil, c
	}
	p := fakePath(path)
	ent, ok := e.entries[p]
	switch {
	case ok && ent.dir:
		return nil, ErrIsDir
	case ok && flags&O_EXCL != 0:
		return nil, ErrExists
	case !ok && flags&O_CREAT == 0:
		return nil, ErrNoEntry
	case !ok:
		parent, pok := e.entries[parentOf(p)]
		if !pok {
			return nil, ErrNoEntry
		}
		if !parent.dir {
			return nil, ErrNotDir
		}
		ent = &fakeEntry{}
		e.entries[p] = ent
	}
	if flags&O_TRUNC != 0 {
		ent.data = nil
	}
	return &fakeFile{eng: e, ent: ent, path: p, flags: flags}, OK
}

// fakeFile is an open file inside a fakeEngine.
type fakeFile struct {
	eng    *fakeEngine
	ent    *fakeEntry
	path   string
	flags  OpenFlag
	pos    int64
	closed bool
}

func (f *fakeFile) Read(p []byte) (int, Code) {
	f.eng.enter("fread", f.path)
	defer f.eng.exit()
	if f.closed || !f.flags.Readable() {
		return 0, ErrBadFile
	}
	if f.pos >= int64(len(f.ent.data)) {
		return 0, OK
	}
	n := copy(p, f.ent.data[f.pos:])
	f.pos += int64(n)
	return n, OK
}

func (f *fakeFile) Write(p []byte) (int, Code) {
	f.eng.enter("fwrite", f.path)
	defer f.eng.exit()
	if f.closed || !f.flags.Writable() {
		return 0, ErrBadFile
	}
	if f.flags&O_APPEND != 0 {
		f.pos = int64(len(f.ent.data))
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.ent.data)) {
		grown := make([]byte, end)
		copy(grown, f.ent.data)
		f.ent.data = grown
	}
	copy(f.ent.data[f.pos:end], p)
	f.pos = end
	return len(p), OK
}

func (f *fakeFile) Seek(offset int64, whence int) (int64, Code) {
	f.eng.enter("fseek", f.path)
	defer f.eng.exit()
	if f.closed {
		return 0, ErrBadFile
	}
	var pos int64
	switch whence {
	case 0:
		pos = offset
	case 1:
		pos = f.pos + offset
	case 2:
		pos = int64(len(f.ent.data)) + offset
	default:
		return 0, ErrInvalid
	}
	if pos < 0 {
		return 0, ErrInvalid
	}
	f.pos = pos
	return pos, OK
}

func (f *fakeFile) Size() (int64, Code) {
	f.eng.enter("fsize", f.path)
	defer f.eng.exit()
	if f.closed {
		return 0, ErrBadFile
	}
	return int64(len(f.ent.data)), OK
}

func (f *fakeFile) Truncate(size int64) Code {
	f.eng.enter("ftruncate", f.path)
	defer f.eng.exit()
	if f.closed || !f.flags.Writable() {
		return ErrBadFile
	}
	cur := int64(len(f.ent.data))
	switch {
	case size < cur:
		f.ent.data = f.ent.data[:size]
	case size > cur:
		grown := make([]byte, size)
		copy(grown, f.ent.data)
		f.ent.data = grown
	}
	return OK
}

func (f *fakeFile) Sync() Code {
	f.eng.enter("fsync", f.path)
	defer f.eng.exit()
	if f.closed {
		return ErrBadFile
	}
	return OK
}

func (f *fakeFile) Close() Code {
	f.eng.enter("fclose", f.path)
	defer f.eng.exit()
	if f.closed {
		return ErrBadFile
	}
	f.closed = true
	return OK
}

// sizedEngine adds usage reporting to fakeEngine.
type sizedEngine struct {
	*fakeEngine
}

func (s *sizedEngine) Size() (uint32, Code) {
	return uint32(len(s.entries)), OK
}

func testConfig() *Config {
	return &Config{
		ReadSize:      16,
		ProgSize:      16,
		BlockSize:     512,
		BlockCount:    64,
		CacheSize:     64,
		LookaheadSize: 16,
	}
}

// newTestFS returns a mounted session over a fresh fake engine.
func newTestFS(t *testing.T) (*FS, *fakeEngine) {
	t.Helper()
	fe := newFakeEngine()
	fs := New(fe, nil)
	if err := fs.Mount(testConfig()); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return fs, fe
}

func countCalls(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op || strings.HasPrefix(c, op+" ") {
			n++
		}
	}
	return n
}

func TestMount_NoConfig(t *testing.T) {
	fe := newFakeEngine()
	fs := New(fe, nil)

	err := fs.Mount(nil)
	if !errors.Is(err, ErrNoConfig) {
		t.Fatalf("Mount(nil) = %v, want ErrNoConfig", err)
	}
	if len(fe.calls) != 0 {
		t.Errorf("engine was called before config check: %v", fe.calls)
	}
	if fs.Mounted() {
		t.Error("session reports mounted after failed mount")
	}
}

func TestMount_FirstBoot(t *testing.T) {
	fe := newFakeEngine()
	fe.formatted = false
	fs := New(fe, nil)

	// A store that was never formatted refuses to mount.
	err := fs.Mount(testConfig())
	if CodeOf(err) != ErrCorrupt {
		t.Fatalf("Mount on unformatted store = %v, want ErrCorrupt", err)
	}
	if fs.Mounted() {
		t.Fatal("session reports mounted after ErrCorrupt")
	}

	// Format uses the configuration stored by the failed mount.
	if err := fs.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if fs.Mounted() {
		t.Fatal("Format of an unmounted session must not mount it")
	}
	if err := fs.Mount(nil); err != nil {
		t.Fatalf("Mount after format: %v", err)
	}
	if !fs.Mounted() {
		t.Fatal("session not mounted")
	}
}

func TestMount_Idempotent(t *testing.T) {
	fs, fe := newTestFS(t)

	if err := fs.Mount(nil); err != nil {
		t.Fatalf("second Mount: %v", err)
	}
	if got := countCalls(fe.calls, "mount"); got != 1 {
		t.Errorf("engine mount called %d times, want 1", got)
	}
}

func TestMount_ConfigFromOptions(t *testing.T) {
	fe := newFakeEngine()
	fs := New(fe, &Options{Config: testConfig()})

	if err := fs.Mount(nil); err != nil {
		t.Fatalf("Mount with options config: %v", err)
	}
}

func TestUnmount_Idempotent(t *testing.T) {
	fe := newFakeEngine()
	fs := New(fe, nil)

	if err := fs.Unmount(); err != nil {
		t.Fatalf("Unmount of unmounted session = %v, want nil", err)
	}
	if len(fe.calls) != 0 {
		t.Errorf("engine was called: %v", fe.calls)
	}
}

func TestUnmount_FailOpen(t *testing.T) {
	fs, fe := newTestFS(t)
	fe.failures["unmount"] = ErrIO

	err := fs.Unmount()
	if CodeOf(err) != ErrIO {
		t.Fatalf("Unmount = %v, want ErrIO", err)
	}
	// The flag drops even though the engine failed.
	if fs.Mounted() {
		t.Error("session still mounted after failed unmount")
	}
	if err := fs.Unmount(); err != nil {
		t.Errorf("second Unmount = %v, want no-op nil", err)
	}
}

func TestUnmount_ClosesHandles(t *testing.T) {
	fs, _ := newTestFS(t)

	f, err := fs.Create("/f.txt")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fs.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}
	if got := fs.Stats().OpenFiles; got != 0 {
		t.Errorf("OpenFiles = %d after unmount, want 0", got)
	}
	if _, err := f.Read(make([]byte, 1)); !errors.Is(err, os.ErrClosed) {
		t.Errorf("read on closed handle = %v, want os.ErrClosed", err)
	}
}

func TestFormat_WhileMounted(t *testing.T) {
	fs, fe := newTestFS(t)
	if err := fs.Mkdir("/data"); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	if err := fs.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !fs.Mounted() {
		t.Fatal("session not remounted after format")
	}
	if fs.Exists("/data") {
		t.Error("/data survived format")
	}

	// unmount, format, mount, in that order.
	var seq []string
	for _, c := range fe.calls {
		if c == "unmount" || c == "format" || c == "mount" {
			seq = append(seq, c)
		}
	}
	want := []string{"mount", "unmount", "format", "mount"}
	if len(seq) != len(want) {
		t.Fatalf("lifecycle calls = %v, want %v", seq, want)
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("lifecycle calls = %v, want %v", seq, want)
		}
	}
}

func TestFormat_WhileUnmounted(t *testing.T) {
	fe := newFakeEngine()
	fs := New(fe, &Options{Config: testConfig()})

	if err := fs.Format(); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if fs.Mounted() {
		t.Error("Format mounted an unmounted session")
	}
	if got := countCalls(fe.calls, "unmount"); got != 0 {
		t.Errorf("engine unmount called %d times, want 0", got)
	}
	if got := countCalls(fe.calls, "mount"); got != 0 {
		t.Errorf("engine mount called %d times, want 0", got)
	}
}

func TestFormat_NoConfig(t *testing.T) {
	fs := New(newFakeEngine(), nil)
	if err := fs.Format(); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("Format = %v, want ErrNoConfig", err)
	}
}

func TestFormat_UnmountFails(t *testing.T) {
	fs, fe := newTestFS(t)
	fe.failures["unmount"] = ErrIO

	err := fs.Format()
	if CodeOf(err) != ErrIO {
		t.Fatalf("Format = %v, want ErrIO", err)
	}
	if got := countCalls(fe.calls, "format"); got != 0 {
		t.Error("engine format ran after failed unmount")
	}
	if fs.Mounted() {
		t.Error("session reports mounted after its unmount step ran")
	}
}

func TestFormat_FormatFails(t *testing.T) {
	fs, fe := newTestFS(t)
	fe.failures["format"] = ErrIO

	err := fs.Format()
	if CodeOf(err) != ErrIO {
		t.Fatalf("Format = %v, want ErrIO", err)
	}
	// The sequence stopped between unmount and remount.
	if fs.Mounted() {
		t.Error("session reports mounted, remount must not have run")
	}
	if got := countCalls(fe.calls, "mount"); got != 1 {
		t.Errorf("engine mount called %d times, want only the initial one", got)
	}
}

func TestFormat_RemountFails(t *testing.T) {
	fs, fe := newTestFS(t)
	fe.failures["mount"] = ErrIO

	err := fs.Format()
	if CodeOf(err) != ErrIO {
		t.Fatalf("Format = %v, want ErrIO", err)
	}
	if fs.Mounted() {
		t.Error("session reports mounted after failed remount")
	}
}

func TestSize(t *testing.T) {
	fe := newFakeEngine()
	fs := New(&sizedEngine{fe}, &Options{Config: testConfig()})
	if err := fs.Mount(nil); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	blocks, err := fs.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if blocks == 0 {
		t.Error("Size = 0, want at least the root")
	}
}

func TestSize_Unsupported(t *testing.T) {
	fs, _ := newTestFS(t)
	if _, err := fs.Size(); !errors.Is(err, errors.ErrUnsupported) {
		t.Fatalf("Size = %v, want ErrUnsupported", err)
	}
}

func TestSize_Unmounted(t *testing.T) {
	fs := New(newFakeEngine(), nil)
	if _, err := fs.Size(); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("Size = %v, want ErrNotMounted", err)
	}
}
