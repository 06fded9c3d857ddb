package user

import "github.com/kailas-cloud/tutorbot/internal/db"

// Each script touches a single user hash and runs atomically on the server.
// A missing key yields a nil reply (Lua false), surfaced as db.ErrKeyNotFound.

// KEYS[1]=user key, ARGV=field/value pairs. Returns 1 if created, 0 if present.
var createScript = db.NewScript("user_create", `
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// ARGV[1]=day start millis, ARGV[2]=now millis, ARGV[3]=allowance.
// Returns 1 if the allowance was refilled, 0 if the last request is already today.
var rolloverScript = db.NewScript("user_rollover", `
local last = redis.call('HGET', KEYS[1], 'last_request_at')
if not last then
  return false
end
if tonumber(last) < tonumber(ARGV[1]) then
  redis.call('HSET', KEYS[1], 'daily_allowance', ARGV[3], 'last_request_at', ARGV[2])
  return 1
end
return 0
`)

// ARGV[1]=now millis. Returns the remaining allowance, -1 if it was already zero.
var consumeScript = db.NewScript("user_consume", `
local cur = redis.call('HGET', KEYS[1], 'daily_allowance')
if not cur then
  return false
end
cur = tonumber(cur)
if cur <= 0 then
  return -1
end
redis.call('HSET', KEYS[1], 'daily_allowance', cur - 1, 'last_request_at', ARGV[1])
return cur - 1
`)

// Returns the new referral count.
var incrementReferralsScript = db.NewScript("user_incr_referrals", `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
return redis.call('HINCRBY', KEYS[1], 'referrals_count', 1)
`)

// ARGV[1]=expected expiry ('' if absent), ARGV[2]=new expiry.
// Returns 1 if swapped, 0 if the stored expiry changed meanwhile.
var casPremiumScript = db.NewScript("user_cas_premium", `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local cur = redis.call('HGET', KEYS[1], 'premium_expires_at') or ''
if cur ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'premium_expires_at', ARGV[2])
return 1
`)

// ARGV[1]=allowance, ARGV[2]=now millis. Returns 1 if reset, 0 if premium is active.
var resetScript = db.NewScript("user_reset", `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local exp = redis.call('HGET', KEYS[1], 'premium_expires_at')
if exp and exp ~= '' and tonumber(exp) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'daily_allowance', ARGV[1])
return 1
`)
