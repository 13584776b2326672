// Package redisstore persists job records in Redis hashes. State
// transitions run as Lua scripts so that claims stay atomic across
// processes.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncobase/genqueue/queue"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "genqueue"

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'queue', ARGV[2], 'owner_id', ARGV[3],
  'status', 'waiting', 'progress', '0', 'submitted_at', ARGV[6], 'updated_at', ARGV[7])
if ARGV[5] == '1' then redis.call('HSET', KEYS[1], 'payload', ARGV[4]) end
redis.call('HINCRBY', KEYS[2], ARGV[2] .. '|waiting', 1)
redis.call('SADD', KEYS[3], ARGV[1])
return 1
`)

var transitionScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= ARGV[1] then return 0 end
local q = redis.call('HGET', KEYS[1], 'queue')
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'updated_at', ARGV[3])
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('HINCRBY', KEYS[2], q .. '|' .. st, -1)
redis.call('HINCRBY', KEYS[2], q .. '|' .. ARGV[2], 1)
return 1
`)

var progressScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then return -1 end
if st ~= 'active' then return 0 end
local cur = tonumber(redis.call('HGET', KEYS[1], 'progress') or '0')
if tonumber(ARGV[1]) > cur then
  redis.call('HSET', KEYS[1], 'progress', ARGV[1], 'updated_at', ARGV[2])
end
return 1
`)

// removeScript deletes a job whose status is one of ARGV[2..].
var removeScript = redis.NewScript(`
local st = redis.call('HGET', KEYS[1], 'status')
if not st then
  redis.call('SREM', KEYS[3], ARGV[1])
  return -1
end
local allowed = false
for i = 2, #ARGV do
  if st == ARGV[i] then allowed = true end
end
if not allowed then return 0 end
local q = redis.call('HGET', KEYS[1], 'queue')
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('HINCRBY', KEYS[2], q .. '|' .. st, -1)
return 1
`)

// Store is a queue.Store on Redis.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ queue.Store = (*Store)(nil)

// New returns a store using rdb. An empty prefix selects DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) jobKey(id string) string { return s.prefix + ":job:" + id }
func (s *Store) statsKey() string        { return s.prefix + ":stats" }
func (s *Store) indexKey() string        { return s.prefix + ":jobs" }

func stamp(t time.Time) string { return strconv.FormatInt(t.UnixNano(), 10) }

// outcome maps a script return code onto store errors.
func outcome(code int64, err error) error {
	if err != nil {
		return err
	}
	switch code {
	case -1:
		return queue.ErrJobNotFound
	case 0:
		return queue.ErrInvalidTransition
	}
	return nil
}

func (s *Store) Create(ctx context.Context, job *queue.Job) error {
	hasPayload := "0"
	if job.Payload != nil {
		hasPayload = "1"
	}
	n, err := createScript.Run(ctx, s.rdb,
		[]string{s.jobKey(job.ID), s.statsKey(), s.indexKey()},
		job.ID, job.QueueName, job.OwnerID, string(job.Payload), hasPayload,
		stamp(job.SubmittedAt), stamp(job.UpdatedAt),
	).Int64()
	if err != nil {
		return fmt.Errorf("redisstore: create job: %w", err)
	}
	if n == 0 {
		return queue.ErrDuplicateJob
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*queue.Job, error) {
	fields, err := s.rdb.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, queue.ErrJobNotFound
	}
	return decode(fields)
}

func decode(f map[string]string) (*queue.Job, error) {
	j := &queue.Job{
		ID:        f["id"],
		QueueName: f["queue"],
		OwnerID:   f["owner_id"],
		Status:    queue.Status(f["status"]),
		Error:     f["error"],
	}
	if v, ok := f["payload"]; ok {
		j.Payload = json.RawMessage(v)
	}
	if v, ok := f["result"]; ok {
		j.Result = json.RawMessage(v)
	}

	var err error
	if j.Progress, err = strconv.Atoi(f["progress"]); err != nil {
		return nil, fmt.Errorf("redisstore: decode progress: %w", err)
	}
	if j.SubmittedAt, err = parseStamp(f["submitted_at"]); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseStamp(f["updated_at"]); err != nil {
		return nil, err
	}
	if v, ok := f["started_at"]; ok {
		t, err := parseStamp(v)
		if err != nil {
			return nil, err
		}
		j.StartedAt = &t
	}
	if v, ok := f["finished_at"]; ok {
		t, err := parseStamp(v)
		if err != nil {
			return nil, err
		}
		j.FinishedAt = &t
	}
	return j, nil
}

func parseStamp(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("redisstore: decode timestamp %q: %w", v, err)
	}
	return time.Unix(0, n).UTC(), nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return outcome(removeScript.Run(ctx, s.rdb,
		[]string{s.jobKey(id), s.statsKey(), s.indexKey()},
		id, string(queue.StatusWaiting),
	).Int64())
}

func (s *Store) transition(ctx context.Context, id string, from, to queue.Status, at time.Time, fields ...string) error {
	args := make([]any, 0, 3+len(fields))
	args = append(args, string(from), string(to), stamp(at))
	for _, f := range fields {
		args = append(args, f)
	}
	return outcome(transitionScript.Run(ctx, s.rdb, []string{s.jobKey(id), s.statsKey()}, args...).Int64())
}

func (s *Store) MarkActive(ctx context.Context, id string, at time.Time) (*queue.Job, error) {
	if err := s.transition(ctx, id, queue.StatusWaiting, queue.StatusActive, at, "started_at", stamp(at)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Store) SetProgress(ctx context.Context, id string, progress int, at time.Time) error {
	return outcome(progressScript.Run(ctx, s.rdb, []string{s.jobKey(id)},
		queue.ClampProgress(progress), stamp(at),
	).Int64())
}

func (s *Store) MarkCompleted(ctx context.Context, id string, result json.RawMessage, at time.Time) error {
	fields := []string{"progress", "100", "finished_at", stamp(at)}
	if result != nil {
		fields = append(fields, "result", string(result))
	}
	return s.transition(ctx, id, queue.StatusActive, queue.StatusCompleted, at, fields...)
}

func (s *Store) MarkFailed(ctx context.Context, id string, reason string, at time.Time) error {
	return s.transition(ctx, id, queue.StatusActive, queue.StatusFailed, at,
		"error", reason, "finished_at", stamp(at))
}

func (s *Store) Stats(ctx context.Context) (map[string]queue.QueueStats, error) {
	counts, err := s.rdb.HGetAll(ctx, s.statsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: stats: %w", err)
	}

	out := make(map[string]queue.QueueStats)
	for field, v := range counts {
		name, status, ok := strings.Cut(field, "|")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			continue
		}
		st, ok := out[name]
		if !ok {
			st = queue.QueueStats{}
			out[name] = st
		}
		st[queue.Status(status)] = n
	}
	return out, nil
}

func (s *Store) PurgeFinished(ctx context.Context, before time.Time) (int, error) {
	purged := 0
	iter := s.rdb.SScan(ctx, s.indexKey(), 0, "", 200).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()
		vals, err := s.rdb.HMGet(ctx, s.jobKey(id), "status", "finished_at").Result()
		if err != nil {
			return purged, fmt.Errorf("redisstore: purge: %w", err)
		}
		status, _ := vals[0].(string)
		finished, _ := vals[1].(string)
		if !queue.Status(status).IsTerminal() || finished == "" {
			continue
		}
		at, err := parseStamp(finished)
		if err != nil || !at.Before(before) {
			continue
		}

		err = outcome(removeScript.Run(ctx, s.rdb,
			[]string{s.jobKey(id), s.statsKey(), s.indexKey()},
			id, string(queue.StatusCompleted), string(queue.StatusFailed),
		).Int64())
		switch {
		case err == nil:
			purged++
		case errors.Is(err, queue.ErrJobNotFound), errors.Is(err, queue.ErrInvalidTransition):
		default:
			return purged, fmt.Errorf("redisstore: purge: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("redisstore: purge: %w", err)
	}
	return purged, nil
}

// Close is a no-op; the client belongs to the data layer.
func (s *Store) Close() error { return nil }
