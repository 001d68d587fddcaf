package session

import (
	"context"
	"testing"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/lang/ops"
)

func newTestManager(cfg Config) *Manager {
	interp := ops.Bootstrap(lang.DefaultConfig)
	return New(interp, cfg)
}

func TestSessionCreation(t *testing.T) {
	m := newTestManager(DefaultConfig())
	s := m.GetOrCreate("telegram", "user123")
	if s.ChannelID != "telegram" || s.UserID != "user123" {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.TrustScore.Value() != 0.5 {
		t.Errorf("trust_score = %v, want 0.5", s.TrustScore.Value())
	}
	if s.HistoryLength() != 0 {
		t.Errorf("expected empty history")
	}
}

func TestGetOrCreateReusesSession(t *testing.T) {
	m := newTestManager(DefaultConfig())

	s1 := m.GetOrCreate("telegram", "user1")
	s2 := m.GetOrCreate("telegram", "user1")
	if s1.ID != s2.ID {
		t.Errorf("expected same session for repeated calls")
	}

	s3 := m.GetOrCreate("discord", "user1")
	if s1.ID == s3.ID {
		t.Errorf("expected a distinct session for a different channel")
	}
}

func TestSessionUpdate(t *testing.T) {
	m := newTestManager(DefaultConfig())
	s := m.GetOrCreate("test", "user")

	actionHash := lang.HashString("action1")
	if err := m.Update(context.Background(), s.ID, actionHash, lang.NewConfidence(0.9)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	updated, ok := m.Get(s.ID)
	if !ok {
		t.Fatalf("expected session to still exist")
	}
	if updated.HistoryLength() != 1 {
		t.Errorf("history length = %d, want 1", updated.HistoryLength())
	}
}

func TestTrustUpdateMovesTowardActionConfidence(t *testing.T) {
	m := newTestManager(DefaultConfig())
	s := m.GetOrCreate("test", "user")

	if err := m.Update(context.Background(), s.ID, lang.HashString("a"), lang.NewConfidence(0.9)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, _ := m.Get(s.ID)
	trust := updated.TrustScore.Value()
	if trust <= 0.5 || trust >= 0.9 {
		t.Errorf("trust = %v, want strictly between 0.5 and 0.9", trust)
	}
}

func TestTrustEMAThreeSteps(t *testing.T) {
	// Matches the property test's expectation: three successive updates at
	// action confidence 0.9 starting from 0.5 land trust in [0.607, 0.609].
	m := newTestManager(DefaultConfig())
	s := m.GetOrCreate("test", "user")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := m.Update(ctx, s.ID, lang.HashString("a"), lang.NewConfidence(0.9)); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}
	final, _ := m.Get(s.ID)
	trust := final.TrustScore.Value()
	if trust < 0.607 || trust > 0.609 {
		t.Errorf("trust after 3 updates = %v, want in [0.607, 0.609]", trust)
	}
}

func TestSessionContext(t *testing.T) {
	m := newTestManager(DefaultConfig())
	s := m.GetOrCreate("test", "user")

	if err := m.SetContext(s.ID, "key", "value"); err != nil {
		t.Fatalf("SetContext: %v", err)
	}
	updated, _ := m.Get(s.ID)
	if updated.State.Context["key"] != "value" {
		t.Errorf("context[key] = %v, want value", updated.State.Context["key"])
	}
}

func TestCleanupExpired(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 0
	var expired []Session
	cfg.OnExpire = func(s Session) { expired = append(expired, s) }
	m := newTestManager(cfg)
	m.now = func() int64 { return 1000 }

	s := m.GetOrCreate("test", "user")
	m.now = func() int64 { return 1000 + 5000 }

	n := m.CleanupExpired()
	if n != 1 {
		t.Fatalf("CleanupExpired = %d, want 1", n)
	}
	if len(expired) != 1 || expired[0].ID != s.ID {
		t.Errorf("OnExpire not invoked with the expected session")
	}
	if m.Count() != 0 {
		t.Errorf("expected no sessions left")
	}
}

func TestGetOrCreateReplacesExpiredSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TimeoutSeconds = 0
	m := newTestManager(cfg)
	m.now = func() int64 { return 1000 }

	s1 := m.GetOrCreate("test", "user")
	m.now = func() int64 { return 1000 + 5000 }

	s2 := m.GetOrCreate("test", "user")
	if s1.ID == s2.ID {
		t.Errorf("expected a fresh session to replace the expired one")
	}
}
