package redis_scripts

import (
	"crypto/sha1" //nolint:gosec // used for deterministic script hash
	"encoding/hex"
)

// ClearPrefix deletes every key matching ARGV[1] in batches of ARGV[2] and returns
// the number of keys removed. Running as one script keeps the clear atomic.
const ClearPrefix = `
local keys = redis.call("KEYS", ARGV[1])
local batch = tonumber(ARGV[2])
local removed = 0
for i = 1, #keys, batch do
	removed = removed + redis.call("DEL", unpack(keys, i, math.min(i + batch - 1, #keys)))
end
return removed`

// Script wraps a Lua source and precomputed sha.
type Script struct {
	Source string
	SHA    string
}

// NewScript builds a Script with deterministic sha1.
func NewScript(src string) Script {
	sum := sha1.Sum([]byte(src))
	return Script{
		Source: src,
		SHA:    hex.EncodeToString(sum[:]),
	}
}
