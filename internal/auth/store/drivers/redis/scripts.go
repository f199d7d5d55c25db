package redis

import "github.com/redis/go-redis/v9"

// KEYS[1] record, KEYS[2] expiry index
// ARGV id, code_hash, identity, created_at, expires_at, nonce_hash
const createVerificationScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "code_hash", ARGV[2],
  "identity", ARGV[3],
  "attempts", 0,
  "created_at", ARGV[4],
  "expires_at", ARGV[5])
redis.call("PEXPIREAT", KEYS[1], ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[5], ARGV[6])
return 1
`

// KEYS[1] record, KEYS[2] expiry index
// ARGV max attempts, nonce_hash
const incrementAttemptsScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local n = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if n >= tonumber(ARGV[1]) then
  redis.call("DEL", KEYS[1])
  redis.call("ZREM", KEYS[2], ARGV[2])
end
return n
`

// KEYS[1] record, KEYS[2] expiry index
// ARGV nonce_hash
const deleteVerificationScript = `
local n = redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return n
`

// KEYS[1] expiry index
// ARGV now, record key prefix
const reapScript = `
local members = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
local deleted = 0
for _, m in ipairs(members) do
  deleted = deleted + redis.call("DEL", ARGV[2] .. m)
end
if #members > 0 then
  redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return deleted
`

// KEYS[1] record, KEYS[2] expiry index
// ARGV id, algorithm, private_key_encrypted, created_at, expires_at, kid
const createSigningKeyScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1],
  "algorithm", ARGV[2],
  "private_key_encrypted", ARGV[3],
  "created_at", ARGV[4],
  "expires_at", ARGV[5])
redis.call("PEXPIREAT", KEYS[1], ARGV[5])
redis.call("ZADD", KEYS[2], ARGV[5], ARGV[6])
return 1
`

var (
	createVerificationLua = redis.NewScript(createVerificationScript)
	incrementAttemptsLua  = redis.NewScript(incrementAttemptsScript)
	deleteVerificationLua = redis.NewScript(deleteVerificationScript)
	reapLua               = redis.NewScript(reapScript)
	createSigningKeyLua   = redis.NewScript(createSigningKeyScript)
)
