package memory

import (
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// TestSearchFilter_UserScopeAlways verifies the mandatory user condition is
// present even with no optional filters.
func TestSearchFilter_UserScopeAlways(t *testing.T) {
	t.Parallel()

	f := searchFilter("user-1", SearchOptions{})

	if len(f.Must) != 1 {
		t.Fatalf("expected exactly the user condition, got %d conditions", len(f.Must))
	}
	field := f.Must[0].GetField()
	if field.GetKey() != "user_id" {
		t.Errorf("expected user_id condition, got %q", field.GetKey())
	}
	if field.GetMatch().GetKeyword() != "user-1" {
		t.Errorf("expected user-1 match, got %q", field.GetMatch().GetKeyword())
	}
}

// TestSearchFilter_OptionalNarrows verifies chat, role, and time filters are
// appended conjunctively.
func TestSearchFilter_OptionalNarrows(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	f := searchFilter("user-1", SearchOptions{
		ChatID: "chat-1",
		Role:   RoleAssistant,
		After:  after,
		Before: before,
	})

	if len(f.Must) != 4 {
		t.Fatalf("expected 4 conditions (user, chat, role, time), got %d", len(f.Must))
	}

	keys := make(map[string]bool)
	for _, c := range f.Must {
		keys[c.GetField().GetKey()] = true
	}
	for _, want := range []string{"user_id", "chat_id", "role", "timestamp"} {
		if !keys[want] {
			t.Errorf("missing condition on %q", want)
		}
	}

	// The time condition carries both bounds.
	for _, c := range f.Must {
		if c.GetField().GetKey() != "timestamp" {
			continue
		}
		rng := c.GetField().GetDatetimeRange()
		if rng.GetGte() == nil || !rng.GetGte().AsTime().Equal(after) {
			t.Errorf("expected gte=%v, got %v", after, rng.GetGte())
		}
		if rng.GetLte() == nil || !rng.GetLte().AsTime().Equal(before) {
			t.Errorf("expected lte=%v, got %v", before, rng.GetLte())
		}
	}
}

// TestSearchFilter_OpenEndedRange verifies a single time bound produces a
// half-open range.
func TestSearchFilter_OpenEndedRange(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := searchFilter("user-1", SearchOptions{After: after})

	if len(f.Must) != 2 {
		t.Fatalf("expected 2 conditions, got %d", len(f.Must))
	}
	for _, c := range f.Must {
		if c.GetField().GetKey() != "timestamp" {
			continue
		}
		rng := c.GetField().GetDatetimeRange()
		if rng.GetGte() == nil {
			t.Error("expected gte bound")
		}
		if rng.GetLte() != nil {
			t.Error("expected no lte bound")
		}
	}
}

// TestPointToHit verifies payload extraction into a SearchHit.
func TestPointToHit(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sp := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID("11111111-2222-3333-4444-555555555555"),
		Score: 0.87,
		Payload: qdrant.NewValueMap(map[string]any{
			"message_id":      "msg-1",
			"user_id":         "user-1",
			"chat_id":         "chat-1",
			"role":            "assistant",
			"content_preview": "hello world",
			"timestamp":       ts.Format(time.RFC3339),
		}),
	}

	hit := pointToHit(sp)

	if hit.MessageID != "msg-1" {
		t.Errorf("expected message_id payload to win, got %q", hit.MessageID)
	}
	if hit.UserID != "user-1" || hit.ChatID != "chat-1" || hit.Role != RoleAssistant {
		t.Errorf("unexpected hit: %+v", hit)
	}
	if hit.Preview != "hello world" {
		t.Errorf("unexpected preview: %q", hit.Preview)
	}
	if !hit.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, hit.Timestamp)
	}
	if hit.Score != 0.87 {
		t.Errorf("expected score 0.87, got %v", hit.Score)
	}
}

// TestPointToHit_MissingPayload verifies the point id backs the hit when the
// payload is absent.
func TestPointToHit_MissingPayload(t *testing.T) {
	t.Parallel()

	sp := &qdrant.ScoredPoint{
		Id:    qdrant.NewIDUUID("11111111-2222-3333-4444-555555555555"),
		Score: 0.5,
	}

	hit := pointToHit(sp)
	if hit.MessageID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("expected id fallback, got %q", hit.MessageID)
	}
	if hit.Score != 0.5 {
		t.Errorf("expected score 0.5, got %v", hit.Score)
	}
}

// TestNewQdrantStore_Validation verifies required config fields.
func TestNewQdrantStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewQdrantStore(&QdrantConfig{VectorSize: 768}); err == nil {
		t.Error("expected error for missing collection")
	}
	if _, err := NewQdrantStore(&QdrantConfig{Collection: "c"}); err == nil {
		t.Error("expected error for zero vector size")
	}
}
