package annotation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/vidmark/internal/apperr"
	"github.com/starford/vidmark/internal/collection"
	"github.com/starford/vidmark/internal/idgen"
	"github.com/starford/vidmark/internal/models"
	"github.com/starford/vidmark/internal/storage"
	"github.com/starford/vidmark/internal/testutil"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type env struct {
	store   *Store
	backend collection.Backend
	assets  storage.Provider
	dir     string
	events  []Event
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	dir, assets := testutil.TestAssets(t)
	backend, err := collection.NewJSONFile(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	e := &env{backend: backend, assets: assets, dir: dir}
	var mu sync.Mutex
	base := []Option{
		WithIDGenerator(idgen.Sequence("ann")),
		WithClock(func() time.Time { return fixedNow }),
		WithNotify(func(ev Event) {
			mu.Lock()
			e.events = append(e.events, ev)
			mu.Unlock()
		}),
	}
	e.store = New(backend, assets, append(base, opts...)...)
	return e
}

func (e *env) create(t *testing.T, videoID string, ts int64) models.Annotation {
	t.Helper()
	a, err := e.store.Create(context.Background(), CreateInput{
		VideoID: videoID, TimestampMs: ts, Image: testutil.PNG(t, 10, 10),
	})
	if err != nil {
		t.Fatalf("Create(%s, %d): %v", videoID, ts, err)
	}
	return a
}

func (e *env) assetDirExists(videoID, id string) bool {
	_, err := os.Stat(filepath.Join(e.dir, filepath.FromSlash(storage.AnnotationDir(videoID, id))))
	return err == nil
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	a, err := e.store.Create(context.Background(), CreateInput{
		VideoID: "v1", TimestampMs: 5000, Image: testutil.PNG(t, 640, 360), Notes: "look here",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := models.Annotation{
		ID:          "ann-1",
		VideoID:     "v1",
		TimestampMs: 5000,
		Timecode:    "00:00:05.000",
		ImagePath:   "/storage/videos/v1/annotations/ann-1/image.png",
		ThumbPath:   "/storage/videos/v1/annotations/ann-1/thumb.png",
		Notes:       "look here",
		CreatedAt:   fixedNow,
	}
	if a != want {
		t.Fatalf("created = %+v\nwant      %+v", a, want)
	}

	image, err := e.assets.Read("videos/v1/annotations/ann-1/image.png")
	if err != nil {
		t.Fatal(err)
	}
	if w, h := testutil.DecodeSize(t, image); w != 640 || h != 360 {
		t.Errorf("image = %dx%d", w, h)
	}
	thumb, err := e.assets.Read("videos/v1/annotations/ann-1/thumb.png")
	if err != nil {
		t.Fatal(err)
	}
	if w, h := testutil.DecodeSize(t, thumb); w != 200 || h != 113 {
		t.Errorf("thumb = %dx%d, want 200x113", w, h)
	}

	if len(e.events) != 1 || e.events[0].Kind != EventCreated || e.events[0].AnnotationID != "ann-1" {
		t.Errorf("events = %+v", e.events)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	e := newEnv(t)
	created := e.create(t, "v1", 1234)
	got, err := e.store.Get(context.Background(), "v1", created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at %v, want %v", got.CreatedAt, created.CreatedAt)
	}
	got.CreatedAt, created.CreatedAt = time.Time{}, time.Time{}
	if got != created {
		t.Errorf("Get = %+v, want %+v", got, created)
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	e := newEnv(t)
	img := testutil.PNG(t, 4, 4)
	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing image", CreateInput{VideoID: "v1", TimestampMs: 1}},
		{"negative timestamp", CreateInput{VideoID: "v1", TimestampMs: -1, Image: img}},
		{"missing video", CreateInput{TimestampMs: 1, Image: img}},
		{"traversal video id", CreateInput{VideoID: "../etc", TimestampMs: 1, Image: img}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.store.Create(context.Background(), tt.in)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
	if dirs, _ := e.assets.ListAssetDirs(); len(dirs) != 0 {
		t.Errorf("asset dirs = %v", dirs)
	}
}

func TestCreateThumbnailFailureLeavesNothing(t *testing.T) {
	e := newEnv(t)
	_, err := e.store.Create(context.Background(), CreateInput{
		VideoID: "v1", TimestampMs: 10, Image: []byte("not an image"),
	})
	if !errors.Is(err, apperr.ErrThumbnailEncodingFailed) {
		t.Fatalf("err = %v, want ErrThumbnailEncodingFailed", err)
	}
	list, err := e.store.List(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("records = %d", len(list))
	}
	if dirs, _ := e.assets.ListAssetDirs(); len(dirs) != 0 {
		t.Errorf("asset dirs = %v", dirs)
	}
}

type failingBackend struct {
	collection.Backend
	failSave bool
}

func (f *failingBackend) Save(ctx context.Context, doc *collection.Document) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.Backend.Save(ctx, doc)
}

func TestCreateCommitFailureRemovesAssets(t *testing.T) {
	dir, assets := testutil.TestAssets(t)
	inner, err := collection.NewJSONFile(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	backend := &failingBackend{Backend: inner, failSave: true}
	s := New(backend, assets, WithIDGenerator(idgen.Sequence("ann")))

	_, err = s.Create(context.Background(), CreateInput{VideoID: "v1", TimestampMs: 1, Image: testutil.PNG(t, 8, 8)})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(filepath.Join(dir, "videos", "v1", "annotations", "ann-1")); !os.IsNotExist(statErr) {
		t.Errorf("asset dir still present: %v", statErr)
	}
}

func TestListOrdering(t *testing.T) {
	e := newEnv(t)
	e.create(t, "v1", 9000)
	e.create(t, "v1", 3000)
	e.create(t, "v2", 1000)
	e.create(t, "v1", 3000)
	e.create(t, "v1", 0)

	list, err := e.store.List(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, a := range list {
		got = append(got, fmt.Sprintf("%s@%d", a.ID, a.TimestampMs))
	}
	want := []string{"ann-5@0", "ann-2@3000", "ann-4@3000", "ann-1@9000"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", got, want)
	}

	empty, err := e.store.List(context.Background(), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("unknown video list = %#v", empty)
	}
}

func TestGetRequiresBothKeys(t *testing.T) {
	e := newEnv(t)
	a := e.create(t, "v1", 1)
	if _, err := e.store.Get(context.Background(), "v2", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("wrong video: err = %v", err)
	}
	if _, err := e.store.Get(context.Background(), "v1", "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("wrong id: err = %v", err)
	}
}

func TestDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	a := e.create(t, "v1", 100)
	keep := e.create(t, "v1", 200)

	if err := e.store.Delete(ctx, "v1", a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.store.Get(ctx, "v1", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete: err = %v", err)
	}
	if err := e.store.Delete(ctx, "v1", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete: err = %v", err)
	}
	if e.assetDirExists("v1", a.ID) {
		t.Error("asset dir not removed")
	}
	if !e.assetDirExists("v1", keep.ID) {
		t.Error("unrelated asset dir removed")
	}
	last := e.events[len(e.events)-1]
	if last.Kind != EventDeleted || last.AnnotationID != a.ID {
		t.Errorf("last event = %+v", last)
	}
}

type brokenRemove struct {
	storage.Provider
}

func (brokenRemove) RemoveAll(string) error { return errors.New("permission denied") }

func TestDeleteCleanupFailureIsNotFatal(t *testing.T) {
	_, assets := testutil.TestAssets(t)
	backend, err := collection.NewJSONFile(filepath.Join(t.TempDir(), "db.json"))
	if err != nil {
		t.Fatal(err)
	}
	s := New(backend, brokenRemove{assets}, WithIDGenerator(idgen.Sequence("ann")))
	ctx := context.Background()
	a, err := s.Create(ctx, CreateInput{VideoID: "v1", TimestampMs: 1, Image: testutil.PNG(t, 4, 4)})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "v1", a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "v1", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("record survived: %v", err)
	}
}

func TestSweepRemovesOnlyOrphans(t *testing.T) {
	e := newEnv(t)
	a := e.create(t, "v1", 1)
	if err := e.assets.Write("videos/v1/annotations/orphan/image.png", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := e.assets.Write("videos/v9/annotations/lost/thumb.png", []byte("x")); err != nil {
		t.Fatal(err)
	}

	n, err := e.store.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("removed = %d, want 2", n)
	}
	if !e.assetDirExists("v1", a.ID) {
		t.Error("referenced assets removed")
	}
	if e.assetDirExists("v1", "orphan") || e.assetDirExists("v9", "lost") {
		t.Error("orphans survived")
	}
}

func TestConcurrentCreatesAllPersist(t *testing.T) {
	e := newEnv(t, WithIDGenerator(idgen.UUIDv4()))
	img := testutil.PNG(t, 4, 4)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			if _, err := e.store.Create(context.Background(), CreateInput{VideoID: "v1", TimestampMs: ts, Image: img}); err != nil {
				t.Errorf("Create: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()
	list, err := e.store.List(context.Background(), "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 16 {
		t.Errorf("records = %d, want 16", len(list))
	}
}

func TestCreateAnnotationAdapter(t *testing.T) {
	e := newEnv(t)
	a, err := e.store.CreateAnnotation(context.Background(), "v1", 61001, testutil.PNG(t, 2, 2), "n")
	if err != nil {
		t.Fatal(err)
	}
	if a.Timecode != "00:01:01.001" || a.Notes != "n" {
		t.Errorf("annotation = %+v", a)
	}
}

func TestURLPrefix(t *testing.T) {
	e := newEnv(t, WithURLPrefix("/media/"))
	a := e.create(t, "v1", 1)
	if a.ImagePath != "/media/videos/v1/annotations/ann-1/image.png" {
		t.Errorf("image path = %s", a.ImagePath)
	}
}
