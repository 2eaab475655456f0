package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pot-code/trilha/internal/infrastructure/driver"
	"go.uber.org/zap"
)

// KVStore keeps the catalogue as one JSON document under a single key
type KVStore struct {
	kv     driver.KeyValueDB
	key    string
	seed   Catalogue
	logger *zap.Logger
}

var _ CatalogueStore = &KVStore{}

// NewKVStore create a KVStore, seed is served while nothing readable is stored
func NewKVStore(kv driver.KeyValueDB, key string, seed Catalogue, logger *zap.Logger) *KVStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVStore{
		kv:     kv,
		key:    key,
		seed:   seed.Clone(),
		logger: logger,
	}
}

// Load the persisted catalogue, or a copy of the seed when the key is
// missing or its value does not parse
func (s *KVStore) Load(ctx context.Context) (Catalogue, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, driver.ErrKeyNotFound) {
		s.logger.Info("no stored catalogue, serving the default one", zap.String("storage.key", s.key))
		return s.seed.Clone(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load catalogue: %w", err)
	}

	c, err := decodeCatalogue(raw)
	if err != nil {
		s.logger.Warn("stored catalogue is unreadable, serving the default one",
			zap.String("storage.key", s.key),
			zap.Int("storage.value.bytes", len(raw)),
			zap.Error(err),
		)
		return s.seed.Clone(), nil
	}
	return c, nil
}

// Save overwrite the stored catalogue with c
func (s *KVStore) Save(ctx context.Context, c Catalogue) error {
	if c == nil {
		c = Catalogue{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode catalogue: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("save catalogue: %w", err)
	}
	return nil
}

func decodeCatalogue(raw string) (Catalogue, error) {
	var c Catalogue
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("catalogue is null")
	}
	return c.normalize(), nil
}
