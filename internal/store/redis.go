package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis key layout.
func mediaKey(id string) string         { return "media:" + id }
func batchKey(id string) string         { return "batch:" + id }
func batchItemsKey(id string) string    { return "batch:" + id + ":media_ids" }
func userKey(username string) string    { return "user:" + username }
func userBatchesKey(u string) string    { return "user:" + u + ":batches" }
func shareTokenKey(token string) string { return "share_token:" + token }
func importTrackerKey(batchID, zipName string) string {
	return "batch_import_tracker:" + batchID + ":" + zipName
}

const usersSetKey = "users"

// trackerField is the single hash field on an import tracker record.
const trackerField = "zip_media_id"

// RedisStore implements Store on Redis hashes and lists.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CreateUser(ctx context.Context, u User) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, userKey(u.Username), map[string]interface{}{
		"password_hash": u.PasswordHash,
		"is_admin":      boolField(u.IsAdmin),
	})
	pipe.SAdd(ctx, usersSetKey, u.Username)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create user %q: %w", u.Username, err)
	}
	return nil
}

func (s *RedisStore) GetUser(ctx context.Context, username string) (User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(username)).Result()
	if err != nil {
		return User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	if len(fields) == 0 {
		return User{}, ErrNotFound
	}
	return User{
		Username:     username,
		PasswordHash: fields["password_hash"],
		IsAdmin:      fields["is_admin"] == "1",
	}, nil
}

func (s *RedisStore) UserExists(ctx context.Context, username string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, usersSetKey, username).Result()
	if err != nil {
		return false, fmt.Errorf("user exists %q: %w", username, err)
	}
	return ok, nil
}

func (s *RedisStore) CreateBatch(ctx context.Context, b Batch) error {
	if err := s.client.HSet(ctx, batchKey(b.ID), toRedisFields(b.Fields())).Err(); err != nil {
		return fmt.Errorf("create batch %s: %w", b.ID, err)
	}
	return nil
}

func (s *RedisStore) GetBatch(ctx context.Context, id string) (Batch, error) {
	fields, err := s.client.HGetAll(ctx, batchKey(id)).Result()
	if err != nil {
		return Batch{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	if len(fields) == 0 {
		return Batch{}, ErrNotFound
	}
	return batchFromFields(id, fields), nil
}

func (s *RedisStore) SetBatchFields(ctx context.Context, id string, fields map[string]string) error {
	if err := s.client.HSet(ctx, batchKey(id), toRedisFields(fields)).Err(); err != nil {
		return fmt.Errorf("set batch %s fields: %w", id, err)
	}
	return nil
}

func (s *RedisStore) DeleteBatch(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, batchKey(id), batchItemsKey(id)).Err(); err != nil {
		return fmt.Errorf("delete batch %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) UserBatchIDs(ctx context.Context, username string) ([]string, error) {
	ids, err := s.client.LRange(ctx, userBatchesKey(username), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list batches for %q: %w", username, err)
	}
	return ids, nil
}

func (s *RedisStore) PushUserBatch(ctx context.Context, username, batchID string) error {
	if err := s.client.LPush(ctx, userBatchesKey(username), batchID).Err(); err != nil {
		return fmt.Errorf("push batch %s for %q: %w", batchID, username, err)
	}
	return nil
}

func (s *RedisStore) RemoveUserBatch(ctx context.Context, username, batchID string) error {
	if err := s.client.LRem(ctx, userBatchesKey(username), 0, batchID).Err(); err != nil {
		return fmt.Errorf("remove batch %s for %q: %w", batchID, username, err)
	}
	return nil
}

func (s *RedisStore) BatchItemIDs(ctx context.Context, batchID string) ([]string, error) {
	ids, err := s.client.LRange(ctx, batchItemsKey(batchID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list items of batch %s: %w", batchID, err)
	}
	return ids, nil
}

func (s *RedisStore) BatchItemCount(ctx context.Context, batchID string) (int64, error) {
	n, err := s.client.LLen(ctx, batchItemsKey(batchID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count items of batch %s: %w", batchID, err)
	}
	return n, nil
}

func (s *RedisStore) AppendBatchItem(ctx context.Context, batchID, itemID string) error {
	if err := s.client.RPush(ctx, batchItemsKey(batchID), itemID).Err(); err != nil {
		return fmt.Errorf("append item %s to batch %s: %w", itemID, batchID, err)
	}
	return nil
}

func (s *RedisStore) RemoveBatchItem(ctx context.Context, batchID, itemID string) error {
	if err := s.client.LRem(ctx, batchItemsKey(batchID), 0, itemID).Err(); err != nil {
		return fmt.Errorf("remove item %s from batch %s: %w", itemID, batchID, err)
	}
	return nil
}

func (s *RedisStore) PutMediaItem(ctx context.Context, item MediaItem) error {
	if err := s.client.HSet(ctx, mediaKey(item.ID), toRedisFields(item.Fields())).Err(); err != nil {
		return fmt.Errorf("put media %s: %w", item.ID, err)
	}
	return nil
}

func (s *RedisStore) GetMediaItem(ctx context.Context, id string) (MediaItem, error) {
	fields, err := s.client.HGetAll(ctx, mediaKey(id)).Result()
	if err != nil {
		return MediaItem{}, fmt.Errorf("get media %s: %w", id, err)
	}
	if len(fields) == 0 {
		return MediaItem{}, ErrNotFound
	}
	return mediaItemFromFields(id, fields), nil
}

func (s *RedisStore) SetMediaFields(ctx context.Context, id string, fields map[string]string) error {
	if err := s.client.HSet(ctx, mediaKey(id), toRedisFields(fields)).Err(); err != nil {
		return fmt.Errorf("set media %s fields: %w", id, err)
	}
	return nil
}

func (s *RedisStore) MediaStatus(ctx context.Context, id string) (Status, error) {
	v, err := s.client.HGet(ctx, mediaKey(id), FieldProcessingStatus).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get media %s status: %w", id, err)
	}
	return Status(v), nil
}

func (s *RedisStore) DeleteMediaItem(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, mediaKey(id)).Err(); err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) SetImportTracker(ctx context.Context, batchID, zipName, mediaID string) error {
	key := importTrackerKey(batchID, zipName)
	if err := s.client.HSet(ctx, key, trackerField, mediaID).Err(); err != nil {
		return fmt.Errorf("set import tracker %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ImportTracker(ctx context.Context, batchID, zipName string) (string, error) {
	v, err := s.client.HGet(ctx, importTrackerKey(batchID, zipName), trackerField).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get import tracker for batch %s: %w", batchID, err)
	}
	return v, nil
}

func (s *RedisStore) DeleteImportTracker(ctx context.Context, batchID, zipName string) error {
	if err := s.client.Del(ctx, importTrackerKey(batchID, zipName)).Err(); err != nil {
		return fmt.Errorf("delete import tracker for batch %s: %w", batchID, err)
	}
	return nil
}

func (s *RedisStore) SetShareToken(ctx context.Context, token, batchID string) error {
	if err := s.client.Set(ctx, shareTokenKey(token), batchID, 0).Err(); err != nil {
		return fmt.Errorf("set share token: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteShareToken(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, shareTokenKey(token)).Err(); err != nil {
		return fmt.Errorf("delete share token: %w", err)
	}
	return nil
}

func (s *RedisStore) ResolveShareToken(ctx context.Context, token string) (string, error) {
	v, err := s.client.Get(ctx, shareTokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve share token: %w", err)
	}
	return v, nil
}

// Pipeline returns a write pipeline that commits all buffered record writes
// in one round trip.
func (s *RedisStore) Pipeline() Pipeline {
	return &redisPipeline{pipe: s.client.Pipeline()}
}

type redisPipeline struct {
	pipe redis.Pipeliner
}

func (p *redisPipeline) SetMediaFields(id string, fields map[string]string) {
	p.pipe.HSet(context.Background(), mediaKey(id), toRedisFields(fields))
}

func (p *redisPipeline) AppendBatchItem(batchID, itemID string) {
	p.pipe.RPush(context.Background(), batchItemsKey(batchID), itemID)
}

func (p *redisPipeline) SetImportTracker(batchID, zipName, mediaID string) {
	p.pipe.HSet(context.Background(), importTrackerKey(batchID, zipName), trackerField, mediaID)
}

func (p *redisPipeline) Exec(ctx context.Context) error {
	if _, err := p.pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec record pipeline: %w", err)
	}
	return nil
}

func toRedisFields(fields map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
