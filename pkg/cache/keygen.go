package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/13108387302/aigate/pkg/types"
)

// Fingerprint derives a deterministic cache key from the request fields that
// affect the generated content. Two requests with the same type, prompt,
// context, and sampling parameters always map to the same key; optional
// fields are appended only when set so their absence and zero value hash
// differently from an explicit value.
func Fingerprint(req *types.Request) string {
	var b strings.Builder
	b.WriteString(string(req.Type))
	b.WriteByte(':')
	b.WriteString(req.Prompt)
	b.WriteByte(':')
	b.WriteString(req.Context)
	if req.MaxTokens > 0 {
		fmt.Fprintf(&b, ":max_tokens=%d", req.MaxTokens)
	}
	if req.Temperature != nil {
		fmt.Fprintf(&b, ":temperature=%g", *req.Temperature)
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
