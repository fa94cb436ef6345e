package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/taskforge/internal/api"
	"github.com/ShayCichocki/taskforge/pkg/models"
)

func TestFactory_NewByKind(t *testing.T) {
	f := NewFactory(&recordingCompleter{reply: "ok"})

	tests := []struct {
		name string
		spec models.WorkerSpec
		want interface{}
	}{
		{"default completion", models.WorkerSpec{Name: "a"}, &CompletionWorker{}},
		{"explicit completion", models.WorkerSpec{Kind: models.WorkerKindCompletion}, &CompletionWorker{}},
		{"augmented flag", models.WorkerSpec{Augmented: true}, &AugmentedWorker{}},
		{"explicit augmented", models.WorkerSpec{Kind: models.WorkerKindAugmented}, &AugmentedWorker{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := f.New(tt.spec)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			switch tt.want.(type) {
			case *CompletionWorker:
				if _, ok := w.(*CompletionWorker); !ok {
					t.Errorf("got %T, want *CompletionWorker", w)
				}
			case *AugmentedWorker:
				if _, ok := w.(*AugmentedWorker); !ok {
					t.Errorf("got %T, want *AugmentedWorker", w)
				}
			}
			if w.Spec().Role != models.DefaultRole {
				t.Errorf("Role = %q, want default", w.Spec().Role)
			}
		})
	}
}

func TestFactory_UnknownKind(t *testing.T) {
	f := NewFactory(&recordingCompleter{})

	_, err := f.New(models.WorkerSpec{Kind: "telepathy"})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestFactory_NoCompleter(t *testing.T) {
	f := NewFactory(nil)

	if err := f.Validate(models.WorkerSpec{}); !errors.Is(err, ErrNoCompleter) {
		t.Errorf("Validate err = %v, want ErrNoCompleter", err)
	}
}

func TestFactory_ModelSelector(t *testing.T) {
	base := &recordingCompleter{reply: "base"}
	haiku := &recordingCompleter{reply: "haiku"}
	f := NewFactory(base, WithModelSelector(func(model string) api.Completer {
		if model == "haiku" {
			return haiku
		}
		return nil
	}))

	w, err := f.New(models.WorkerSpec{Model: "haiku"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, _ := w.Execute(context.Background(), "x")
	if got != "haiku" {
		t.Errorf("Execute = %q, want model-specific completer", got)
	}

	w, _ = f.New(models.WorkerSpec{Model: "other"})
	got, _ = w.Execute(context.Background(), "x")
	if got != "base" {
		t.Errorf("Execute = %q, want fallback completer", got)
	}
}

func TestFactory_NewRoster(t *testing.T) {
	f := NewFactory(&recordingCompleter{})

	roster, err := f.NewRoster([]models.WorkerSpec{{Name: "a"}, {Name: "b"}})
	if err != nil {
		t.Fatalf("NewRoster failed: %v", err)
	}
	if len(roster) != 2 {
		t.Errorf("roster len = %d, want 2", len(roster))
	}

	_, err = f.NewRoster([]models.WorkerSpec{{Name: "a"}, {Name: "b", Kind: "bogus"}})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("err = %v, want ErrUnknownKind", err)
	}
}

func TestFactory_TimeoutWraps(t *testing.T) {
	f := NewFactory(&recordingCompleter{}, WithTimeout(time.Second))

	w, err := f.New(models.WorkerSpec{Name: "a"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	tw, ok := w.(*timedWorker)
	if !ok {
		t.Fatalf("got %T, want *timedWorker", w)
	}
	if tw.Timeout() != time.Second {
		t.Errorf("Timeout = %s, want 1s", tw.Timeout())
	}
}
