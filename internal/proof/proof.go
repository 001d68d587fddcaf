package proof

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
)

// ErrKeyGeneration reports a failure to load or generate signing key
// material.
type ErrKeyGeneration struct{ Reason string }

func (e *ErrKeyGeneration) Error() string { return "proof: key generation failed: " + e.Reason }

// ErrVerification reports a signature that failed to verify.
type ErrVerification struct{ Reason string }

func (e *ErrVerification) Error() string { return "proof: verification failed: " + e.Reason }

// PCA is a Proof-Carrying Action: a signed, auditable record of what the
// gateway decided to do and why.
type PCA struct {
	Action         message.Action `json:"action"`
	SessionHash    lang.Hash      `json:"session_hash"`
	InputHash      lang.Hash      `json:"input_hash"`
	ExecutionTrace []lang.Hash    `json:"execution_trace"`
	Confidence     lang.Confidence `json:"confidence"`
	Signature      []byte         `json:"signature,omitempty"`
	Timestamp      int64          `json:"timestamp"` // unix milliseconds
}

// Pending returns an unsigned, no-op PCA — used as a placeholder before a
// real decision has been made, or as the diagnostic carrier for a fatal
// error per the propagation rule (first fatal error short-circuits into a
// signed NoOp PCA).
func Pending() PCA {
	return PCA{Action: message.NoOp("pending")}
}

// TraceLength returns the number of node hashes recorded across the PCA's
// execution trace.
func (p PCA) TraceLength() int { return len(p.ExecutionTrace) }

// IsSigned reports whether the PCA carries a non-empty signature.
func (p PCA) IsSigned() bool { return len(p.Signature) == ed25519.SignatureSize }

func (p PCA) String() string {
	return fmt.Sprintf("PCA{action=%s, confidence=%.3f, signed=%v}", p.Action.Type(), p.Confidence.Value(), p.IsSigned())
}

// Generator signs and verifies Proof-Carrying Actions with an Ed25519
// keypair. Lock-free after construction: the key material never changes.
type Generator struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
}

// NewRandom generates a fresh Ed25519 keypair.
func NewRandom() (*Generator, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, &ErrKeyGeneration{Reason: err.Error()}
	}
	return &Generator{private: priv, public: pub}, nil
}

// FromSeed builds a Generator from a 32-byte Ed25519 seed, for loading a
// previously persisted key.
func FromSeed(seed []byte) (*Generator, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, &ErrKeyGeneration{Reason: fmt.Sprintf("invalid key length, expected %d bytes", ed25519.SeedSize)}
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Generator{private: priv, public: priv.Public().(ed25519.PublicKey)}, nil
}

// LoadOrGenerate reads a 32-byte seed from path, or generates a fresh
// keypair and writes its seed to path (mode 0600) if the file doesn't
// exist yet.
func LoadOrGenerate(path string) (*Generator, error) {
	seed, err := os.ReadFile(path)
	if err == nil {
		return FromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, &ErrKeyGeneration{Reason: err.Error()}
	}

	gen, err := NewRandom()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, gen.private.Seed(), 0o600); err != nil {
		return nil, &ErrKeyGeneration{Reason: err.Error()}
	}
	return gen, nil
}

// PublicKey returns the generator's 32-byte Ed25519 public key.
func (g *Generator) PublicKey() ed25519.PublicKey { return g.public }

// Signer adapts Generate's signing into the (message []byte) ([]byte,
// error) shape the interpreter's Sign builtin op expects.
func (g *Generator) Signer(msg []byte) ([]byte, error) {
	return ed25519.Sign(g.private, msg), nil
}

// Verifier adapts key verification into the (message, signature, publicKey)
// bool shape the interpreter's Verify builtin op expects.
func (g *Generator) Verifier(msg, sig, pub []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

// Generate builds and signs a PCA from the given decision inputs, combining
// every trace's node hashes into one ordered execution_trace and deriving
// confidence from the combined trace length and how many of the traces
// were served from cache.
func (g *Generator) Generate(action message.Action, sessionHash, inputHash lang.Hash, traces []ExecutionTrace) (PCA, error) {
	timestamp := time.Now().UnixMilli()

	var trace []lang.Hash
	for _, t := range traces {
		trace = append(trace, t.Nodes...)
	}

	confidence := calculateConfidence(trace, traces)

	msg, err := buildSignMessage(action, sessionHash, inputHash, trace, confidence, timestamp)
	if err != nil {
		return PCA{}, err
	}

	pca := PCA{
		Action:         action,
		SessionHash:    sessionHash,
		InputHash:      inputHash,
		ExecutionTrace: trace,
		Confidence:     confidence,
		Signature:      ed25519.Sign(g.private, msg),
		Timestamp:      timestamp,
	}
	return pca, nil
}

// Verify checks pca's signature against the generator's own public key.
func (g *Generator) Verify(pca PCA) (bool, error) {
	return VerifyWithKey(pca, g.public)
}

// VerifyWithKey checks pca's signature against an arbitrary public key,
// for verifying PCAs produced by a different gateway instance.
func VerifyWithKey(pca PCA, publicKey ed25519.PublicKey) (bool, error) {
	msg, err := buildSignMessage(pca.Action, pca.SessionHash, pca.InputHash, pca.ExecutionTrace, pca.Confidence, pca.Timestamp)
	if err != nil {
		return false, err
	}
	if len(pca.Signature) != ed25519.SignatureSize {
		return false, &ErrVerification{Reason: "signature has the wrong length"}
	}
	if !ed25519.Verify(publicKey, msg, pca.Signature) {
		return false, &ErrVerification{Reason: "signature does not match"}
	}
	return true, nil
}

// buildSignMessage lays out the exact byte sequence signed and verified:
// canonical JSON of the action, then the session hash, input hash, and
// every execution_trace hash as raw 32-byte digests, then confidence as a
// little-endian float32 and timestamp as a little-endian uint64. Any
// change to this layout invalidates every previously issued signature.
func buildSignMessage(action message.Action, sessionHash, inputHash lang.Hash, trace []lang.Hash, confidence lang.Confidence, timestamp int64) ([]byte, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("proof: marshal action: %w", err)
	}

	buf := make([]byte, 0, len(actionBytes)+64+len(trace)*32+4+8)
	buf = append(buf, actionBytes...)
	buf = append(buf, sessionHash[:]...)
	buf = append(buf, inputHash[:]...)
	for _, h := range trace {
		buf = append(buf, h[:]...)
	}

	var confBytes [4]byte
	binary.LittleEndian.PutUint32(confBytes[:], math.Float32bits(float32(confidence.Value())))
	buf = append(buf, confBytes[:]...)

	var tsBytes [8]byte
	binary.LittleEndian.PutUint64(tsBytes[:], uint64(timestamp))
	buf = append(buf, tsBytes[:]...)

	return buf, nil
}

// calculateConfidence starts from a high base confidence and decays it by
// trace length, with a small bonus per cached trace, clamped to [0.5, 1.0].
func calculateConfidence(trace []lang.Hash, traces []ExecutionTrace) lang.Confidence {
	const base = 0.99
	lengthDecay := 0.001 * float64(len(trace))

	var cachedCount int
	for _, t := range traces {
		if t.Cached {
			cachedCount++
		}
	}
	cacheBonus := 0.001 * float64(cachedCount)

	value := base - lengthDecay + cacheBonus
	if value < 0.5 {
		value = 0.5
	}
	if value > 1.0 {
		value = 1.0
	}
	return lang.NewConfidence(value)
}

// Builder assembles a PCA step by step, mirroring the original's
// ProofBuilder fluent API.
type Builder struct {
	generator   *Generator
	action      *message.Action
	sessionHash *lang.Hash
	inputHash   *lang.Hash
	traces      []ExecutionTrace
}

// NewBuilder starts a Builder bound to generator.
func NewBuilder(generator *Generator) *Builder {
	return &Builder{generator: generator}
}

func (b *Builder) Action(a message.Action) *Builder {
	b.action = &a
	return b
}

func (b *Builder) SessionHash(h lang.Hash) *Builder {
	b.sessionHash = &h
	return b
}

func (b *Builder) InputHash(h lang.Hash) *Builder {
	b.inputHash = &h
	return b
}

func (b *Builder) AddTrace(t ExecutionTrace) *Builder {
	b.traces = append(b.traces, t)
	return b
}

// Build signs and returns the assembled PCA, failing if any required field
// was never set.
func (b *Builder) Build() (PCA, error) {
	if b.action == nil {
		return PCA{}, fmt.Errorf("proof: builder missing action")
	}
	if b.sessionHash == nil {
		return PCA{}, fmt.Errorf("proof: builder missing session hash")
	}
	if b.inputHash == nil {
		return PCA{}, fmt.Errorf("proof: builder missing input hash")
	}
	return b.generator.Generate(*b.action, *b.sessionHash, *b.inputHash, b.traces)
}
