// Package memory is the default, zero-configuration store backend: skill
// registry entries, channel adapter credentials, and API tokens live only
// as long as the process does. Suitable for local bootstrap and tests;
// anything that must survive a restart needs sqlite3 or postgres.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	atcrypto "github.com/rakunlabs/pcgate/internal/crypto"
	"github.com/rakunlabs/pcgate/internal/store"
)

// Memory is an in-memory implementation of store.StorerClose. Data does
// not survive process restarts.
type Memory struct {
	mu sync.RWMutex

	skills       map[string]store.SkillRecord  // name -> record
	channels     map[string]store.ChannelRecord // name -> record
	tokens       map[string]store.APIToken     // id -> token
	tokenHashes  map[string]string             // id -> hash (kept out of APIToken itself)
	tokensByHash map[string]string             // hash -> id

	encKey []byte
}

// New builds an empty in-memory store. encKey may be nil to disable
// at-rest encryption of channel tokens.
func New(encKey []byte) *Memory {
	slog.Info("using in-memory store (data will not persist across restarts)")

	return &Memory{
		skills:       make(map[string]store.SkillRecord),
		channels:     make(map[string]store.ChannelRecord),
		tokens:       make(map[string]store.APIToken),
		tokenHashes:  make(map[string]string),
		tokensByHash: make(map[string]string),
		encKey:       encKey,
	}
}

func (m *Memory) Close() {}

// ─── Skill CRUD ───

func (m *Memory) ListSkills(_ context.Context) ([]store.SkillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]store.SkillRecord, 0, len(m.skills))
	for _, rec := range m.skills {
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b store.SkillRecord) int {
		return stringCompare(a.Name, b.Name)
	})
	return result, nil
}

func (m *Memory) GetSkillByName(_ context.Context, name string) (*store.SkillRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.skills[name]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) UpsertSkill(_ context.Context, rec store.SkillRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.InstalledAt == "" {
		rec.InstalledAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.skills[rec.Name] = rec
	return nil
}

func (m *Memory) DeleteSkillByName(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.skills, name)
	return nil
}

// ─── Channel CRUD ───

func (m *Memory) ListChannels(_ context.Context) ([]store.ChannelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]store.ChannelRecord, 0, len(m.channels))
	for _, rec := range m.channels {
		decrypted, err := m.decryptChannel(rec)
		if err != nil {
			return nil, err
		}
		result = append(result, decrypted)
	}
	slices.SortFunc(result, func(a, b store.ChannelRecord) int {
		return stringCompare(a.Name, b.Name)
	})
	return result, nil
}

func (m *Memory) GetChannel(_ context.Context, name string) (*store.ChannelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.channels[name]
	if !ok {
		return nil, nil
	}
	decrypted, err := m.decryptChannel(rec)
	if err != nil {
		return nil, err
	}
	return &decrypted, nil
}

func (m *Memory) UpsertChannel(_ context.Context, rec store.ChannelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if existing, ok := m.channels[rec.Name]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	token, err := atcrypto.Encrypt(rec.Token, m.encKey)
	if err != nil {
		return fmt.Errorf("encrypt channel token for %q: %w", rec.Name, err)
	}
	rec.Token = token

	m.channels[rec.Name] = rec
	return nil
}

func (m *Memory) DeleteChannel(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.channels, name)
	return nil
}

func (m *Memory) decryptChannel(rec store.ChannelRecord) (store.ChannelRecord, error) {
	token, err := atcrypto.Decrypt(rec.Token, m.encKey)
	if err != nil {
		return rec, fmt.Errorf("decrypt channel token for %q: %w", rec.Name, err)
	}
	rec.Token = token
	return rec, nil
}

// ─── API Token CRUD ───

func (m *Memory) ListAPITokens(_ context.Context) ([]store.APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]store.APIToken, 0, len(m.tokens))
	for _, tok := range m.tokens {
		result = append(result, tok)
	}
	slices.SortFunc(result, func(a, b store.APIToken) int {
		return stringCompare(a.CreatedAt, b.CreatedAt)
	})
	return result, nil
}

func (m *Memory) GetAPITokenByHash(_ context.Context, hash string) (*store.APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.tokensByHash[hash]
	if !ok {
		return nil, nil
	}
	tok := m.tokens[id]
	return &tok, nil
}

func (m *Memory) CreateAPIToken(_ context.Context, tok store.APIToken, tokenHash string) (*store.APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok.ID = ulid.Make().String()
	tok.CreatedAt = time.Now().UTC().Format(time.RFC3339)

	m.tokens[tok.ID] = tok
	m.tokenHashes[tok.ID] = tokenHash
	m.tokensByHash[tokenHash] = tok.ID
	return &tok, nil
}

func (m *Memory) DeleteAPIToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hash, ok := m.tokenHashes[id]; ok {
		delete(m.tokensByHash, hash)
	}
	delete(m.tokens, id)
	delete(m.tokenHashes, id)
	return nil
}

func (m *Memory) UpdateLastUsed(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, ok := m.tokens[id]
	if !ok {
		return fmt.Errorf("api token %q not found", id)
	}
	tok.LastUsedAt = time.Now().UTC().Format(time.RFC3339)
	m.tokens[id] = tok
	return nil
}

// ─── Key Rotation ───

func (m *Memory) RotateEncryptionKey(_ context.Context, newKey []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reencrypted := make(map[string]store.ChannelRecord, len(m.channels))
	for name, rec := range m.channels {
		plain, err := atcrypto.Decrypt(rec.Token, m.encKey)
		if err != nil {
			return fmt.Errorf("decrypt channel token for %q: %w", name, err)
		}
		cipher, err := atcrypto.Encrypt(plain, newKey)
		if err != nil {
			return fmt.Errorf("re-encrypt channel token for %q: %w", name, err)
		}
		rec.Token = cipher
		reencrypted[name] = rec
	}

	m.channels = reencrypted
	m.encKey = newKey
	slog.Info("encryption key rotated", "channels_updated", len(reencrypted))
	return nil
}

func (m *Memory) SetEncryptionKey(newKey []byte) {
	m.mu.Lock()
	m.encKey = newKey
	m.mu.Unlock()
}

func stringCompare(a, b string) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
