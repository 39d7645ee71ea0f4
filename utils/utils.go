package utils

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/DomeLiquid/federation/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
)

// Fingerprint hashes the publishable metadata of a content item with
// xxh3-128. Missing content has no publishable metadata and yields "".
func Fingerprint(item *core.ContentItem) (string, error) {
	if item == nil {
		return "", nil
	}
	b, err := item.MetadataJSON()
	if err != nil {
		return "", errors.Wrap(err, "encode metadata")
	}
	sum := xxh3.Hash128(b).Bytes()
	return strings.ToUpper(hex.EncodeToString(sum[:])), nil
}

// GenUuidFromParts derives a stable name-based uuid from the ordered parts.
func GenUuidFromParts(parts ...string) string {
	if len(parts) == 0 {
		parts = append(parts, "00000000-0000-0000-0000-000000000000")
	}
	return uuidHash([]byte(strings.Join(parts, "\x1f")))
}

func uuidHash(b []byte) string {
	h := md5.New()

	h.Write(b)
	sum := h.Sum(nil)
	sum[6] = (sum[6] & 0x0f) | 0x30
	sum[8] = (sum[8] & 0x3f) | 0x80
	return uuid.FromBytesOrNil(sum).String()
}
