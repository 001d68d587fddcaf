// Package cluster provides distributed coordination for multiple gateway
// instances using the alan UDP peer discovery library. It wraps alan to
// provide:
//   - Distributed locking for admin operations (encryption key rotation,
//     trigger scheduling)
//   - Broadcasting skill-registry invalidation to all peers, so a skill
//     installed on one instance is reloaded by the others
package cluster

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/rakunlabs/alan"
)

const (
	// lockKeyRotation is the distributed lock name for encryption key rotation.
	lockKeyRotation = "encryption-key-rotation"

	// lockScheduler is the distributed lock name for the trigger scheduler.
	lockScheduler = "trigger-scheduler"

	// msgTypeRotateKey identifies a key rotation broadcast message.
	msgTypeRotateKey = "rotate-key"

	// msgTypeInvalidateSkill identifies a skill-registry invalidation broadcast.
	msgTypeInvalidateSkill = "invalidate-skill"
)

// clusterMessage is the JSON envelope for messages sent between peers.
type clusterMessage struct {
	Type string `json:"type"`
	// Key is base64-encoded new encryption key (empty = disable encryption).
	Key string `json:"key,omitempty"`
	// SkillHash is the hex content hash of the skill that was installed or
	// removed, present on msgTypeInvalidateSkill messages.
	SkillHash string `json:"skill_hash,omitempty"`
}

// Cluster wraps an alan instance with gateway-specific distributed coordination.
type Cluster struct {
	alan *alan.Alan
}

// New creates a Cluster from the server's alan configuration.
// Returns nil, nil if cfg is nil (clustering disabled).
func New(cfg *alan.Config) (*Cluster, error) {
	if cfg == nil {
		return nil, nil
	}

	a, err := alan.New(*cfg)
	if err != nil {
		return nil, fmt.Errorf("create alan instance: %w", err)
	}

	return &Cluster{alan: a}, nil
}

// Start begins the alan peer discovery system in the background.
// onNewKey is invoked when this instance receives a key rotation broadcast
// (nil key means encryption was disabled). onInvalidateSkill is invoked
// with the hex content hash of a skill installed/removed on another peer,
// so the local registry can reload it from the shared store.
//
// Start blocks until the context is cancelled. It should be run in a goroutine.
func (c *Cluster) Start(ctx context.Context, onNewKey func(newKey []byte), onInvalidateSkill func(skillHash string)) error {
	c.alan.OnPeerJoin(func(addr *net.UDPAddr) {
		slog.Info("cluster peer joined", "addr", addr.String())
	})

	c.alan.OnPeerLeave(func(addr *net.UDPAddr) {
		slog.Info("cluster peer left", "addr", addr.String())
	})

	handler := func(_ context.Context, msg alan.Message) {
		var cm clusterMessage
		if err := json.Unmarshal(msg.Data, &cm); err != nil {
			slog.Warn("cluster: invalid message", "from", msg.Addr, "error", err)
			return
		}

		switch cm.Type {
		case msgTypeRotateKey:
			var newKey []byte
			if cm.Key != "" {
				var err error
				newKey, err = base64.StdEncoding.DecodeString(cm.Key)
				if err != nil {
					slog.Error("cluster: invalid key in rotate-key message", "from", msg.Addr, "error", err)
					return
				}
			}

			slog.Info("cluster: received key rotation from peer", "from", msg.Addr)

			if onNewKey != nil {
				onNewKey(newKey)
			}

		case msgTypeInvalidateSkill:
			slog.Info("cluster: received skill invalidation from peer", "from", msg.Addr, "skill_hash", cm.SkillHash)

			if onInvalidateSkill != nil {
				onInvalidateSkill(cm.SkillHash)
			}

		default:
			slog.Debug("cluster: unknown message type", "type", cm.Type, "from", msg.Addr)
		}

		if msg.IsRequest() {
			c.alan.Reply(msg, []byte("ok")) //nolint:errcheck
		}
	}

	return c.alan.Start(ctx, handler)
}

// Stop gracefully leaves the cluster.
func (c *Cluster) Stop() error {
	return c.alan.Stop()
}

// Lock acquires the distributed lock for key rotation.
// Blocks until the lock is acquired or the context is cancelled.
func (c *Cluster) Lock(ctx context.Context) error {
	return c.alan.Lock(ctx, lockKeyRotation)
}

// Unlock releases the distributed lock for key rotation.
func (c *Cluster) Unlock() error {
	return c.alan.Unlock(lockKeyRotation)
}

// LockScheduler acquires the distributed lock for the trigger scheduler, so
// exactly one instance drives cron/webhook trigger firing at a time.
// Blocks until the lock is acquired or the context is cancelled.
func (c *Cluster) LockScheduler(ctx context.Context) error {
	return c.alan.Lock(ctx, lockScheduler)
}

// UnlockScheduler releases the distributed lock for the trigger scheduler.
func (c *Cluster) UnlockScheduler() error {
	return c.alan.Unlock(lockScheduler)
}

// BroadcastNewKey sends the new encryption key to all peers and waits for
// their acknowledgements. A nil newKey signals peers to disable encryption.
func (c *Cluster) BroadcastNewKey(ctx context.Context, newKey []byte) error {
	cm := clusterMessage{Type: msgTypeRotateKey}
	if newKey != nil {
		cm.Key = base64.StdEncoding.EncodeToString(newKey)
	}
	return c.broadcast(ctx, cm)
}

// BroadcastSkillInvalidation tells all peers that the skill with the given
// hex content hash was installed or removed, so they should reload the
// registry entry from the shared store rather than serve a stale one.
func (c *Cluster) BroadcastSkillInvalidation(ctx context.Context, skillHash string) error {
	return c.broadcast(ctx, clusterMessage{Type: msgTypeInvalidateSkill, SkillHash: skillHash})
}

func (c *Cluster) broadcast(ctx context.Context, cm clusterMessage) error {
	peers := c.alan.Peers()
	if len(peers) == 0 {
		slog.Info("cluster: no peers to broadcast to", "type", cm.Type)
		return nil
	}

	data, err := json.Marshal(cm)
	if err != nil {
		return fmt.Errorf("marshal cluster message: %w", err)
	}

	// Use a timeout so we don't wait forever for unresponsive peers.
	broadcastCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	replies, err := c.alan.SendAndWaitReply(broadcastCtx, data)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("broadcast %s: %w", cm.Type, err)
	}

	slog.Info("cluster: broadcast complete",
		"type", cm.Type,
		"peers", len(peers),
		"acks", len(replies),
	)

	if len(replies) < len(peers) {
		slog.Warn("cluster: not all peers acknowledged broadcast",
			"type", cm.Type,
			"expected", len(peers),
			"received", len(replies),
		)
	}

	return nil
}

// Ready returns a channel that is closed when the cluster is ready.
func (c *Cluster) Ready() <-chan struct{} {
	return c.alan.Ready()
}
