package lang

import (
	"crypto/sha256"
	"encoding/json"
	"hash"
)

func sha256New() hash.Hash {
	return sha256.New()
}

func marshalValue(v Value) ([]byte, error) {
	return json.Marshal(v)
}
