package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/excaliboard/excaliboard/pkg/artifact"
	"github.com/excaliboard/excaliboard/pkg/convert"
	"github.com/excaliboard/excaliboard/pkg/errors"
	"github.com/excaliboard/excaliboard/pkg/media"
	"github.com/excaliboard/excaliboard/pkg/security"
)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errs      []error
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

// blockingConverter holds every Convert call until release is closed.
type blockingConverter struct {
	started chan struct{}
	release chan struct{}
	result  *convert.Result
	err     error
}

func (c *blockingConverter) Convert(ctx context.Context, blob *media.ImageBlob) (*convert.Result, error) {
	close(c.started)
	<-c.release
	return c.result, c.err
}

type staticConverter struct {
	result *convert.Result
	err    error
}

func (c staticConverter) Convert(ctx context.Context, blob *media.ImageBlob) (*convert.Result, error) {
	return c.result, c.err
}

func testBlob(name string) *media.ImageBlob {
	return media.NewImageBlob([]byte("img"), "image/png", name)
}

func TestSession_HappyPath(t *testing.T) {
	n := &recordingNotifier{}
	res := &convert.Result{Filename: "board", Contents: json.RawMessage(`{"a":1}`)}
	s := New(staticConverter{result: res}, n, Options{})

	if s.State().Phase != PhaseIdle {
		t.Fatalf("expected idle, got %s", s.State())
	}
	if err := s.SelectImage(testBlob("board.png")); err != nil {
		t.Fatalf("SelectImage: %v", err)
	}
	if s.State().Phase != PhaseSelected {
		t.Fatalf("expected selected, got %s", s.State())
	}
	if err := s.Convert(context.Background()); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	st := s.State()
	if st.Phase != PhaseReady || st.Result != res {
		t.Fatalf("expected ready with result, got %s", st)
	}

	dir := t.TempDir()
	path, err := s.Download(context.Background(), artifact.DirSink{Dir: dir})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if path != filepath.Join(dir, "board.excalidraw") {
		t.Errorf("unexpected path %q", path)
	}
	data, _ := os.ReadFile(path)
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil || !reflect.DeepEqual(got, map[string]any{"a": float64(1)}) {
		t.Errorf("downloaded contents did not round-trip: %s (%v)", data, err)
	}

	if s.State().Phase != PhaseReady {
		t.Errorf("download must not change state, got %s", s.State())
	}
	if len(n.successes) != 2 || len(n.errs) != 0 {
		t.Errorf("unexpected notifications: %v / %v", n.successes, n.errs)
	}
}

func TestSession_SelectWhileConverting(t *testing.T) {
	n := &recordingNotifier{}
	conv := &blockingConverter{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  &convert.Result{Filename: "board", Contents: json.RawMessage(`{}`)},
	}
	s := New(conv, n, Options{})

	first := testBlob("first.png")
	if err := s.SelectImage(first); err != nil {
		t.Fatalf("SelectImage: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Convert(context.Background()) }()
	<-conv.started

	err := s.SelectImage(testBlob("second.png"))
	if !errors.Is(err, errors.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if st := s.State(); st.Phase != PhaseConverting || st.Blob != first {
		t.Errorf("expected converting(first), got %s", st)
	}
	if err := s.Convert(context.Background()); !errors.Is(err, errors.ErrBusy) {
		t.Errorf("expected ErrBusy for second submit, got %v", err)
	}

	close(conv.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Convert: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("conversion did not finish")
	}

	if s.State().Phase != PhaseReady {
		t.Errorf("expected ready, got %s", s.State())
	}
	if err := s.SelectImage(testBlob("third.png")); err != nil {
		t.Errorf("selection should be available after conversion: %v", err)
	}
	if n.errorCount() != 2 {
		t.Errorf("expected each rejection notified once, got %d", n.errorCount())
	}
}

func TestSession_ServerErrorLeavesSessionReselectable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := &recordingNotifier{}
	client := convert.NewClient(server.URL, convert.EncodingJSON, nil, security.NewValidator(0))
	s := New(client, n, Options{})

	s.SelectImage(testBlob("board.png"))
	err := s.Convert(context.Background())
	if !errors.Is(err, errors.ErrConversionFailed) {
		t.Fatalf("expected ErrConversionFailed, got %v", err)
	}

	st := s.State()
	if st.Phase != PhaseFailed || !errors.Is(st.Err, errors.ErrConversionFailed) {
		t.Errorf("expected failed with ErrConversionFailed, got %s (%v)", st, st.Err)
	}
	if st.Result != nil {
		t.Error("failed state must not carry a result")
	}
	if n.errorCount() != 1 {
		t.Errorf("expected exactly one error notification, got %d", n.errorCount())
	}

	if err := s.SelectImage(testBlob("retry.png")); err != nil {
		t.Errorf("selectImage should be available after failure: %v", err)
	}
	if s.State().Phase != PhaseSelected {
		t.Errorf("expected selected, got %s", s.State())
	}
}

func TestSession_MissingContentsNeverReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"filename":"board"}`))
	}))
	defer server.Close()

	client := convert.NewClient(server.URL, convert.EncodingJSON, nil, security.NewValidator(0))
	s := New(client, nil, Options{})

	s.SelectImage(testBlob("board.png"))
	err := s.Convert(context.Background())
	if !errors.Is(err, errors.ErrInvalidResponseShape) {
		t.Fatalf("expected ErrInvalidResponseShape, got %v", err)
	}
	if st := s.State(); st.Phase != PhaseFailed {
		t.Errorf("expected failed, got %s", st)
	}
	if _, err := s.Download(context.Background(), artifact.DirSink{Dir: t.TempDir()}); !errors.Is(err, errors.ErrInvalidState) {
		t.Errorf("download must be unavailable outside ready, got %v", err)
	}
}

func TestSession_ConvertWithoutSelection(t *testing.T) {
	s := New(staticConverter{}, nil, Options{})
	if err := s.Convert(context.Background()); !errors.Is(err, errors.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
	if s.State().Phase != PhaseIdle {
		t.Errorf("expected idle, got %s", s.State())
	}
}

func TestReduce(t *testing.T) {
	blob := testBlob("a.png")
	res := &convert.Result{Filename: "a", Contents: json.RawMessage(`{}`)}

	tests := []struct {
		name      string
		from      State
		ev        Event
		want      Phase
		shouldErr bool
	}{
		{"idle select", State{Phase: PhaseIdle}, ImageSelected{Blob: blob}, PhaseSelected, false},
		{"ready select", State{Phase: PhaseReady, Blob: blob, Result: res}, ImageSelected{Blob: blob}, PhaseSelected, false},
		{"failed select", State{Phase: PhaseFailed, Blob: blob}, ImageSelected{Blob: blob}, PhaseSelected, false},
		{"selected reselect", State{Phase: PhaseSelected, Blob: blob}, ImageSelected{Blob: blob}, PhaseSelected, false},
		{"converting select", State{Phase: PhaseConverting, Blob: blob}, ImageSelected{Blob: blob}, PhaseConverting, true},
		{"nil blob", State{Phase: PhaseIdle}, ImageSelected{}, PhaseIdle, true},
		{"submit", State{Phase: PhaseSelected, Blob: blob}, SubmitRequested{}, PhaseConverting, false},
		{"submit idle", State{Phase: PhaseIdle}, SubmitRequested{}, PhaseIdle, true},
		{"submit ready", State{Phase: PhaseReady, Blob: blob, Result: res}, SubmitRequested{}, PhaseReady, true},
		{"success", State{Phase: PhaseConverting, Blob: blob}, ConversionSucceeded{Result: res}, PhaseReady, false},
		{"empty success", State{Phase: PhaseConverting, Blob: blob}, ConversionSucceeded{Result: &convert.Result{Filename: "a"}}, PhaseFailed, false},
		{"late success", State{Phase: PhaseIdle}, ConversionSucceeded{Result: res}, PhaseIdle, true},
		{"failure", State{Phase: PhaseConverting, Blob: blob}, ConversionFailed{Err: errors.ErrConversionFailed}, PhaseFailed, false},
		{"late failure", State{Phase: PhaseSelected, Blob: blob}, ConversionFailed{}, PhaseSelected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reduce(tt.from, tt.ev)
			if tt.shouldErr != (err != nil) {
				t.Errorf("error = %v, shouldErr %v", err, tt.shouldErr)
			}
			if got.Phase != tt.want {
				t.Errorf("phase = %s, want %s", got.Phase, tt.want)
			}
		})
	}
}
