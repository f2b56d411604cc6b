package object

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"
)

const defaultObjectName = "upload"

var ErrInvalidKey = errors.New("invalid storage key")

// OwnerPrefix hashes an owner id so keys never carry the raw identifier.
func OwnerPrefix(ownerID string) string {
	sum := sha256.Sum256([]byte(ownerID))
	return hex.EncodeToString(sum[:])
}

// SafeName flattens a client-supplied file name into a single key segment.
func SafeName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(s)
	s = strings.Trim(s, ". ")
	if s == "" {
		return defaultObjectName
	}
	return s
}

// Key builds <sha256(owner)>/<documentID>/<safe name>.
func Key(obj Object) (string, error) {
	if strings.TrimSpace(obj.OwnerID) == "" || strings.TrimSpace(obj.DocumentID) == "" {
		return "", errors.New("object owner and document id are required")
	}
	return path.Join(OwnerPrefix(obj.OwnerID), SafeName(obj.DocumentID), SafeName(obj.FileName)), nil
}

// ValidateKey rejects absolute keys and keys escaping the store root.
func ValidateKey(key string) error {
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || clean == "." || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidKey
	}
	return nil
}
