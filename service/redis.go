package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/JerryEnes/object-detection-with-Dockerfile/config"
	"github.com/JerryEnes/object-detection-with-Dockerfile/model"
	"github.com/JerryEnes/object-detection-with-Dockerfile/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const detectionKeyPrefix = "detection:"

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetDetection 按上传 ID 读取检测记录，未命中时返回 nil, nil
func (s *RedisService) GetDetection(ctx context.Context, id string) (*model.DetectionRecord, error) {
	data, err := s.client.Get(ctx, detectionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var record model.DetectionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		utils.Logger.Error("failed to unmarshal detection record",
			zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &record, nil
}

// SetDetection 写入检测记录
func (s *RedisService) SetDetection(ctx context.Context, record *model.DetectionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, detectionKeyPrefix+record.ID, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
