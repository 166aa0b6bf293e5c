package redis

const (
	// writeSessionScript writes a session hash if and only if the stored
	// version still matches the version the caller read, and keeps the
	// per-date indexes in step. Returns 1 on success, 0 on a version
	// conflict (the caller re-reads and retries).
	writeSessionScript = `
local session_key = KEYS[1]   -- screentime:session:{date}:{timerID}
local running_set = KEYS[2]   -- screentime:sessions:running:{date}
local index_set = KEYS[3]     -- screentime:sessions:index:{date}
local dates_set = KEYS[4]     -- screentime:sessions:dates

local expected_version = ARGV[1]
local timer_id = ARGV[2]
local date = ARGV[3]
local status = ARGV[4]
local started_at = ARGV[5]
local elapsed_seconds = ARGV[6]
local bonus_seconds = ARGV[7]
local warning_sent = ARGV[8]
local expired_sent = ARGV[9]
local new_version = ARGV[10]

local current = redis.call('HGET', session_key, 'version')
if current == false then
  current = '0'
end
if current ~= expected_version then
  return 0
end

redis.call('HSET', session_key,
  'timer_id', timer_id,
  'date', date,
  'status', status,
  'started_at', started_at,
  'elapsed_seconds', elapsed_seconds,
  'bonus_seconds', bonus_seconds,
  'warning_sent', warning_sent,
  'expired_sent', expired_sent,
  'version', new_version
)

-- Keep the per-date indexes in step with the status
if status == 'running' then
  redis.call('SADD', running_set, timer_id)
else
  redis.call('SREM', running_set, timer_id)
end
redis.call('SADD', index_set, timer_id)
redis.call('SADD', dates_set, date)

return 1
`
)
