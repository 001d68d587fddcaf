package memory

import (
	"context"
	"testing"

	"github.com/rakunlabs/pcgate/internal/crypto"
	"github.com/rakunlabs/pcgate/internal/store"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key, err := crypto.DeriveKey("memory-store-test-key")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	return key
}

func TestSkillCRUD(t *testing.T) {
	ctx := context.Background()
	m := New(nil)

	if _, err := m.GetSkillByName(ctx, "echo"); err != nil {
		t.Fatalf("GetSkillByName on empty store: %v", err)
	}

	rec := store.SkillRecord{Name: "echo", Hash: "deadbeef", Graph: []byte(`{"name":"echo"}`)}
	if err := m.UpsertSkill(ctx, rec); err != nil {
		t.Fatalf("UpsertSkill: %v", err)
	}

	got, err := m.GetSkillByName(ctx, "echo")
	if err != nil {
		t.Fatalf("GetSkillByName: %v", err)
	}
	if got == nil || got.Hash != "deadbeef" {
		t.Fatalf("expected stored skill, got %+v", got)
	}
	if got.InstalledAt == "" {
		t.Fatal("expected InstalledAt to be stamped on first upsert")
	}

	list, err := m.ListSkills(ctx)
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(list))
	}

	if err := m.DeleteSkillByName(ctx, "echo"); err != nil {
		t.Fatalf("DeleteSkillByName: %v", err)
	}
	if got, _ := m.GetSkillByName(ctx, "echo"); got != nil {
		t.Fatal("expected skill to be gone after delete")
	}
}

func TestChannelCRUDEncryptsTokenAtRest(t *testing.T) {
	ctx := context.Background()
	key := testKey(t)
	m := New(key)

	rec := store.ChannelRecord{Name: "discord", Token: "bot-token-secret", Allowlist: []string{"guild-1"}}
	if err := m.UpsertChannel(ctx, rec); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	got, err := m.GetChannel(ctx, "discord")
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if got == nil || got.Token != "bot-token-secret" {
		t.Fatalf("expected decrypted round-trip token, got %+v", got)
	}
	if got.CreatedAt == "" || got.UpdatedAt == "" {
		t.Fatal("expected timestamps to be stamped")
	}

	// The record held internally must be encrypted, not plaintext.
	m.mu.RLock()
	raw := m.channels["discord"]
	m.mu.RUnlock()
	if !crypto.IsEncrypted(raw.Token) {
		t.Fatalf("expected token to be encrypted at rest, got %q", raw.Token)
	}

	if err := m.DeleteChannel(ctx, "discord"); err != nil {
		t.Fatalf("DeleteChannel: %v", err)
	}
	if got, _ := m.GetChannel(ctx, "discord"); got != nil {
		t.Fatal("expected channel to be gone after delete")
	}
}

func TestChannelUpsertPreservesCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := New(nil)

	if err := m.UpsertChannel(ctx, store.ChannelRecord{Name: "mail", Token: "p1"}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	first, _ := m.GetChannel(ctx, "mail")

	if err := m.UpsertChannel(ctx, store.ChannelRecord{Name: "mail", Token: "p2"}); err != nil {
		t.Fatalf("UpsertChannel again: %v", err)
	}
	second, _ := m.GetChannel(ctx, "mail")

	if second.CreatedAt != first.CreatedAt {
		t.Fatalf("expected CreatedAt to be preserved across updates: first=%q second=%q", first.CreatedAt, second.CreatedAt)
	}
	if second.Token != "p2" {
		t.Fatalf("expected token to be updated, got %q", second.Token)
	}
}

func TestRotateEncryptionKeyReencryptsAllChannels(t *testing.T) {
	ctx := context.Background()
	oldKey := testKey(t)
	m := New(oldKey)

	if err := m.UpsertChannel(ctx, store.ChannelRecord{Name: "telegram", Token: "tg-token"}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	newKey, err := crypto.DeriveKey("a-different-key")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if err := m.RotateEncryptionKey(ctx, newKey); err != nil {
		t.Fatalf("RotateEncryptionKey: %v", err)
	}

	got, err := m.GetChannel(ctx, "telegram")
	if err != nil {
		t.Fatalf("GetChannel after rotation: %v", err)
	}
	if got.Token != "tg-token" {
		t.Fatalf("expected token to decrypt correctly under the new key, got %q", got.Token)
	}

	// The old key must no longer decrypt the stored ciphertext.
	m.mu.RLock()
	raw := m.channels["telegram"]
	m.mu.RUnlock()
	if _, err := crypto.Decrypt(raw.Token, oldKey); err == nil {
		t.Fatal("expected decryption with the old key to fail after rotation")
	}
}

func TestSetEncryptionKeyIsApplicableByPeers(t *testing.T) {
	ctx := context.Background()
	key1 := testKey(t)
	m := New(key1)

	if err := m.UpsertChannel(ctx, store.ChannelRecord{Name: "discord", Token: "secret"}); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	key2, err := crypto.DeriveKey("peer-broadcast-key")
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}

	// SetEncryptionKey swaps the key without touching existing rows, the
	// way a cluster peer applies a broadcast it did not itself originate
	// (the originating node already re-encrypted via RotateEncryptionKey).
	m.SetEncryptionKey(key2)

	if _, err := m.GetChannel(ctx, "discord"); err == nil {
		t.Fatal("expected decrypt under the new key to fail for a row encrypted under the old key")
	}
}

func TestAPITokenCRUD(t *testing.T) {
	ctx := context.Background()
	m := New(nil)

	created, err := m.CreateAPIToken(ctx, store.APIToken{Name: "ci", TokenPrefix: "pcg_ab"}, "hash-of-token")
	if err != nil {
		t.Fatalf("CreateAPIToken: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated token ID")
	}

	got, err := m.GetAPITokenByHash(ctx, "hash-of-token")
	if err != nil {
		t.Fatalf("GetAPITokenByHash: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected lookup by hash to find the created token, got %+v", got)
	}

	if err := m.UpdateLastUsed(ctx, created.ID); err != nil {
		t.Fatalf("UpdateLastUsed: %v", err)
	}
	got, _ = m.GetAPITokenByHash(ctx, "hash-of-token")
	if got.LastUsedAt == "" {
		t.Fatal("expected LastUsedAt to be stamped")
	}

	if err := m.UpdateLastUsed(ctx, "nonexistent"); err == nil {
		t.Fatal("expected an error updating last_used for an unknown token id")
	}

	if err := m.DeleteAPIToken(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAPIToken: %v", err)
	}
	if got, _ := m.GetAPITokenByHash(ctx, "hash-of-token"); got != nil {
		t.Fatal("expected token lookup by hash to fail after delete")
	}
}
