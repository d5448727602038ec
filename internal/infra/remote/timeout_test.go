package remote

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hackfest/syncengine/internal/core/domain"
)

func TestDeadlineExpiry(t *testing.T) {
	start := time.Now()
	_, err := Deadline(context.Background(), 20*time.Millisecond, func(ctx context.Context) (json.RawMessage, error) {
		time.Sleep(500 * time.Millisecond)
		return json.RawMessage(`"late"`), nil
	})

	if time.Since(start) > 200*time.Millisecond {
		t.Error("Deadline did not abandon the slow call")
	}

	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) {
		t.Fatalf("Expected classified error, got %v", err)
	}
	if ce.Kind != domain.ErrTimeout {
		t.Errorf("Expected Timeout, got %v", ce.Kind)
	}
	if !ce.Retryable {
		t.Error("Timeout should be retryable")
	}
}

func TestDeadlineFastCall(t *testing.T) {
	data, err := Deadline(context.Background(), time.Second, func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`"ok"`), nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if string(data) != `"ok"` {
		t.Errorf("Unexpected result %s", data)
	}
}

func TestDeadlineDisabled(t *testing.T) {
	data, err := Deadline(context.Background(), 0, func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`"ok"`), nil
	})
	if err != nil || string(data) != `"ok"` {
		t.Errorf("Expected passthrough without guard, got %s, %v", data, err)
	}
}

func TestDeadlinePropagatesCallError(t *testing.T) {
	want := errors.New("boom")
	_, err := Deadline(context.Background(), time.Second, func(ctx context.Context) (json.RawMessage, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected original error, got %v", err)
	}
}
