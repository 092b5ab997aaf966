package goenv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/gotestlog/pkg/classifier"
)

var (
	_ classifier.StdlibResolver = (*Resolver)(nil)
	_ classifier.StdlibResolver = Static(nil)
)

type fakeRunner struct {
	out   string
	err   error
	calls int
	name  string
	args  []string
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	f.name = name
	f.args = args
	return []byte(f.out), f.err
}

func TestResolver_StdlibRoots(t *testing.T) {
	fake := &fakeRunner{out: "/opt/go1.22\n"}
	r := New("", WithRunner(fake.run))

	roots, err := r.StdlibRoots(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "go", fake.name)
	assert.Equal(t, []string{"env", "GOROOT"}, fake.args)
	assert.Contains(t, roots, "/opt/go1.22")
}

func TestResolver_CachesPerBinary(t *testing.T) {
	fake := &fakeRunner{out: "/opt/go\n"}
	shared := cache.New(time.Minute, time.Minute)

	r := New("go", WithRunner(fake.run), WithCache(shared))
	_, err := r.StdlibRoots(context.Background())
	require.NoError(t, err)
	_, err = r.StdlibRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	other := New("/usr/lib/go-1.21/bin/go", WithRunner(fake.run), WithCache(shared))
	_, err = other.StdlibRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}

func TestResolver_CachedSliceIsCopied(t *testing.T) {
	fake := &fakeRunner{out: "/opt/go\n"}
	r := New("go", WithRunner(fake.run))

	roots, err := r.StdlibRoots(context.Background())
	require.NoError(t, err)
	roots[0] = "mutated"

	again, err := r.StdlibRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/opt/go", again[0])
}

func TestResolver_RunnerFailure(t *testing.T) {
	cause := errors.New("executable file not found in $PATH")
	fake := &fakeRunner{err: cause}
	r := New("go-missing", WithRunner(fake.run))

	_, err := r.StdlibRoots(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "go-missing env GOROOT")

	_, err = r.StdlibRoots(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, fake.calls, "failures must not be cached")
}

func TestResolver_EmptyOutput(t *testing.T) {
	r := New("go", WithRunner((&fakeRunner{out: "  \n"}).run))

	_, err := r.StdlibRoots(context.Background())
	assert.ErrorIs(t, err, ErrEmptyGOROOT)
}

func TestResolver_FeedsClassifier(t *testing.T) {
	r := New("go", WithRunner((&fakeRunner{out: "/opt/go\n"}).run))

	records, err := classifier.ClassifyWith(context.Background(), []string{
		"panic: boom",
		"\t/opt/go/src/runtime/panic.go:884 +0x213",
		"\t/home/dev/app/main.go:12 +0x1d",
	}, r)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/home/dev/app/main.go", records[0].File)
	assert.Len(t, records[0].Frames, 1)
}

func TestResolver_FailureAbortsClassification(t *testing.T) {
	r := New("go", WithRunner((&fakeRunner{err: errors.New("exit status 1")}).run))

	_, err := classifier.ClassifyWith(context.Background(), []string{"panic: boom"}, r)

	var resErr *classifier.EnvironmentResolutionError
	assert.ErrorAs(t, err, &resErr)
}

func TestVariants(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "go-realDir")
	require.NoError(t, os.Mkdir(realDir, 0755))
	link := filepath.Join(dir, "go")
	if err := os.Symlink(realDir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got := Variants(link)
	assert.Contains(t, got, link)

	resolved, err := filepath.EvalSymlinks(link)
	require.NoError(t, err)
	assert.Contains(t, got, resolved)
}

func TestVariants_NoDuplicates(t *testing.T) {
	got := Variants("/nonexistent/go")
	assert.Equal(t, []string{"/nonexistent/go"}, got)
}

func TestStatic(t *testing.T) {
	roots, err := Static{" /opt/go ", ""}.StdlibRoots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/opt/go"}, roots)

	_, err = Static{}.StdlibRoots(context.Background())
	assert.ErrorIs(t, err, ErrNoRoots)
}
