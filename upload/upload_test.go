package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/reqflow/field"
	"github.com/s0up4200/reqflow/middleware"
	"github.com/s0up4200/reqflow/reqconfig"
	"github.com/s0up4200/reqflow/request"
	"github.com/s0up4200/reqflow/transport"
)

// fakeTransport streams uploads in fixed-size chunks
type fakeTransport struct {
	chunk  int64
	calls  atomic.Int32
	upload func(ctx context.Context, req *transport.UploadRequest) (*transport.Response, error)
}

func (f *fakeTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeTransport) Upload(ctx context.Context, req *transport.UploadRequest, progress transport.ProgressFunc) (*transport.Response, error) {
	f.calls.Add(1)
	if f.chunk > 0 {
		for sent := f.chunk; sent <= req.Size; sent += f.chunk {
			progress(sent, req.Size)
		}
	}
	if f.upload != nil {
		return f.upload(ctx, req)
	}
	body := fmt.Sprintf(`{"code":200,"image":"https://cdn.example.com/%s"}`, req.Name)
	return transport.NewResponse(http.StatusOK, nil, []byte(body)), nil
}

func staticFiles(files ...File) Selector {
	return SelectorFunc(func(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error) {
		return files, nil
	})
}

func newTestClient(tr transport.Transport) *request.Client {
	return request.New(
		request.WithTransport(tr),
		request.WithGlobal(middleware.NewRegistry()),
		request.WithLogger(zerolog.Nop()),
		request.WithConfig(reqconfig.Partial{
			Request: &reqconfig.RequestPartial{Origin: reqconfig.Literal("https://api.example.com")},
			Upload:  &reqconfig.UploadPartial{API: reqconfig.Ptr("upload")},
		}),
	)
}

func waitTask(t *testing.T, task *Task) ([]any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := task.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "task never settled")
	return v, err
}

func TestUpload_ProgressMonotonic(t *testing.T) {
	tr := &fakeTransport{chunk: 25}
	gate := make(chan struct{})
	selector := SelectorFunc(func(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error) {
		<-gate
		return []File{{Path: "/tmp/a.jpg", Size: 100}, {Path: "/tmp/b.jpg", Size: 300}}, nil
	})
	orch := New(newTestClient(tr), selector)

	var (
		mu      sync.Mutex
		updates []float64
		starts  int
	)
	task := orch.Upload(context.Background(), Options{})
	task.OnStart(func() {
		mu.Lock()
		starts++
		mu.Unlock()
	}).OnProgress(func(p float64) {
		mu.Lock()
		updates = append(updates, p)
		mu.Unlock()
	})
	close(gate)

	results, err := waitTask(t, task)
	require.NoError(t, err)
	assert.Equal(t, []any{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, results)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, starts)
	require.NotEmpty(t, updates)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i], updates[i-1])
	}
	assert.InDelta(t, 1.0, updates[len(updates)-1], 1e-9)
	assert.Equal(t, int32(2), tr.calls.Load())
}

func TestTracker(t *testing.T) {
	var got []float64
	p := newTracker(2, func(v float64) { got = append(got, v) })

	p.update(0, 10, 100)  // 0.05 total, below step
	p.update(0, 40, 100)  // 0.2
	p.update(0, 30, 100)  // backwards, ignored
	p.update(1, 30, 300)  // 0.25, below step from 0.2
	p.update(1, 60, 300)  // 0.3, exactly one step
	p.update(1, 150, 300) // 0.45
	p.set(0, 1)
	p.set(1, 1)
	p.finish()

	want := []float64{0.2, 0.3, 0.45, 0.75, 1}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
}

func TestTracker_ExactSteps(t *testing.T) {
	var got []float64
	p := newTracker(1, func(v float64) { got = append(got, v) })

	for i := 1; i <= 10; i++ {
		p.set(0, float64(i)/10)
	}
	p.finish()

	require.Len(t, got, 10)
	for i, v := range got {
		assert.InDelta(t, float64(i+1)/10, v, 1e-9)
	}
}

func TestUpload_NothingSelected(t *testing.T) {
	tr := &fakeTransport{}
	orch := New(newTestClient(tr), staticFiles())

	var started atomic.Bool
	task := orch.Upload(context.Background(), Options{})
	task.OnStart(func() { started.Store(true) })

	_, err := waitTask(t, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNothingSelected)

	var reqErr *request.Error
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, 500, reqErr.Code)
	assert.Equal(t, "nothing selected", reqErr.Message)
	assert.False(t, started.Load())
	assert.Zero(t, tr.calls.Load())
}

func TestUpload_Abort(t *testing.T) {
	inFlight := make(chan struct{}, 2)
	tr := &fakeTransport{upload: func(ctx context.Context, req *transport.UploadRequest) (*transport.Response, error) {
		inFlight <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orch := New(newTestClient(tr), staticFiles(
		File{Path: "a.jpg", Size: 10},
		File{Path: "b.jpg", Size: 10},
	))

	task := orch.Upload(context.Background(), Options{})
	<-inFlight
	<-inFlight
	task.Abort()
	task.Abort()

	_, err := waitTask(t, task)
	assert.ErrorIs(t, err, request.ErrAborted)
	assert.NotPanics(t, task.Abort)
}

func TestUpload_AbortBeforeSelection(t *testing.T) {
	gate := make(chan struct{})
	selector := SelectorFunc(func(ctx context.Context, kind Kind, opts SelectOptions) ([]File, error) {
		select {
		case <-gate:
			return []File{{Path: "a.jpg", Size: 1}}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	tr := &fakeTransport{}
	orch := New(newTestClient(tr), selector)

	task := orch.Upload(context.Background(), Options{})
	task.Abort()

	_, err := waitTask(t, task)
	assert.ErrorIs(t, err, request.ErrAborted)
	assert.Zero(t, tr.calls.Load())
	close(gate)
}

func TestUpload_Failure(t *testing.T) {
	t.Run("business failure fails fast, siblings continue", func(t *testing.T) {
		release := make(chan struct{})
		siblingDone := make(chan error, 1)
		tr := &fakeTransport{upload: func(ctx context.Context, req *transport.UploadRequest) (*transport.Response, error) {
			if req.Name == "bad.jpg" {
				return transport.NewResponse(http.StatusOK, nil, []byte(`{"code":413,"message":"too large"}`)), nil
			}
			select {
			case <-release:
				siblingDone <- nil
			case <-ctx.Done():
				siblingDone <- ctx.Err()
			}
			return transport.NewResponse(http.StatusOK, nil, []byte(`{"code":200,"image":"ok"}`)), nil
		}}
		orch := New(newTestClient(tr), staticFiles(
			File{Path: "good.jpg", Size: 1},
			File{Path: "bad.jpg", Size: 1},
		))

		_, err := waitTask(t, orch.Upload(context.Background(), Options{}))
		var reqErr *request.Error
		require.True(t, errors.As(err, &reqErr))
		assert.Equal(t, float64(413), reqErr.Code)
		assert.Equal(t, "too large", reqErr.Message)

		close(release)
		assert.NoError(t, <-siblingDone)
	})

	t.Run("cancel on failure", func(t *testing.T) {
		siblingDone := make(chan error, 1)
		tr := &fakeTransport{upload: func(ctx context.Context, req *transport.UploadRequest) (*transport.Response, error) {
			if req.Name == "bad.jpg" {
				return nil, &transport.Error{Method: "POST", URL: req.URL, Err: errors.New("boom")}
			}
			<-ctx.Done()
			siblingDone <- ctx.Err()
			return nil, ctx.Err()
		}}
		orch := New(newTestClient(tr), staticFiles(
			File{Path: "good.jpg", Size: 1},
			File{Path: "bad.jpg", Size: 1},
		))

		_, err := waitTask(t, orch.Upload(context.Background(), Options{CancelOnFailure: true}))
		var reqErr *request.Error
		require.True(t, errors.As(err, &reqErr))
		assert.True(t, reqErr.IsTransport())

		select {
		case err := <-siblingDone:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("sibling transfer was not cancelled")
		}
	})

	t.Run("bad format", func(t *testing.T) {
		tr := &fakeTransport{upload: func(ctx context.Context, req *transport.UploadRequest) (*transport.Response, error) {
			return transport.NewResponse(http.StatusOK, nil, []byte("<html>")), nil
		}}
		orch := New(newTestClient(tr), staticFiles(File{Path: "a.jpg", Size: 1}))

		_, err := waitTask(t, orch.Upload(context.Background(), Options{}))
		assert.ErrorIs(t, err, request.ErrBadFormat)
	})
}

func TestUpload_HTTP(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.png")
	large := filepath.Join(dir, "large.png")
	require.NoError(t, os.WriteFile(small, make([]byte, 100), 0o600))
	require.NoError(t, os.WriteFile(large, make([]byte, 300), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/media", r.URL.Path)
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))

		f, header, err := r.FormFile("media")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		n, _ := io.Copy(io.Discard, f)
		assert.Equal(t, "album", r.FormValue("folder"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"code":200,"data":{"url":"/m/%s","bytes":%d}}`, header.Filename, n)
	}))
	defer server.Close()

	client := request.New(
		request.WithGlobal(nil),
		request.WithConfig(reqconfig.Partial{
			Request: &reqconfig.RequestPartial{
				Origin: reqconfig.Literal(server.URL),
				Path:   reqconfig.Ptr(""),
				Header: reqconfig.Literal(map[string]string{"Authorization": "Bearer t"}),
			},
		}),
	)

	resultField, err := field.Parse([]any{"data", "url"})
	require.NoError(t, err)

	orch := New(client, FileSelector{Paths: []string{small, large}})
	task := orch.Upload(context.Background(), Options{
		API:          "v1/media",
		RequestField: "media",
		ResultField:  &resultField,
		FormData:     map[string]string{"folder": "album"},
		Concurrency:  1,
	})

	results, err := waitTask(t, task)
	require.NoError(t, err)
	assert.Equal(t, []any{"/m/small.png", "/m/large.png"}, results)
}

func TestFileSelector(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.jpg")
	vid := filepath.Join(dir, "b.mp4")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))
	require.NoError(t, os.WriteFile(vid, []byte("mp4!!"), 0o600))
	ctx := context.Background()

	tests := []struct {
		name    string
		paths   []string
		kind    Kind
		count   int
		want    []File
		wantErr bool
	}{
		{name: "image", paths: []string{img}, kind: KindImage, want: []File{{Path: img, Size: 4}}},
		{name: "video", paths: []string{vid}, kind: KindVideo, want: []File{{Path: vid, Size: 5}}},
		{name: "any kind", paths: []string{img, vid}, want: []File{{Path: img, Size: 4}, {Path: vid, Size: 5}}},
		{name: "count", paths: []string{img, vid}, count: 1, want: []File{{Path: img, Size: 4}}},
		{name: "wrong kind", paths: []string{vid}, kind: KindImage, wantErr: true},
		{name: "missing", paths: []string{filepath.Join(dir, "nope.jpg")}, kind: KindImage, wantErr: true},
		{name: "directory", paths: []string{dir}, wantErr: true},
		{name: "empty", paths: nil, kind: KindImage, want: []File{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileSelector{Paths: tt.paths}.Select(ctx, tt.kind, SelectOptions{Count: tt.count})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
