package session

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"

	"github.com/xeptore/beater/spotify/types"
)

var (
	sessionBucketName = []byte("session")
	tokenKeyName      = []byte("token")
)

// Storage persists the session token between runs.
type Storage struct {
	db *bbolt.DB
}

type storedToken struct {
	AccessToken string `json:"access_token"`
	Tier        string `json:"tier"`
	ExpiresAt   int64  `json:"expires_at"`
}

func NewStorage(path string) (*Storage, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := createBuckets(db); nil != err {
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	return &Storage{db: db}, nil
}

func createBuckets(db *bbolt.DB) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucketName)
		if nil != err {
			return fmt.Errorf("failed to create session bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to create buckets: %v", err)
	}

	return nil
}

func (s *Storage) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close database: %v", err)
	}

	return nil
}

// LoadToken returns nil when no token was stored.
func (s *Storage) LoadToken(_ context.Context) (*Token, error) {
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(sessionBucketName).Get(tokenKeyName); nil != v {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if nil != err {
		return nil, fmt.Errorf("failed to load token: %v", err)
	}

	if nil == raw {
		return nil, nil //nolint:nilnil
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); nil != err {
		return nil, fmt.Errorf("failed to decode stored token: %v", err)
	}

	return &Token{
		AccessToken: st.AccessToken,
		Tier:        tierFromProduct(st.Tier),
		ExpiresAt:   time.Unix(st.ExpiresAt, 0).UTC(),
	}, nil
}

func (s *Storage) StoreToken(_ context.Context, t Token) error {
	raw, err := json.Marshal(storedToken{
		AccessToken: t.AccessToken,
		Tier:        t.Tier.String(),
		ExpiresAt:   t.ExpiresAt.Unix(),
	})
	if nil != err {
		return fmt.Errorf("failed to encode token: %v", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(sessionBucketName).Put(tokenKeyName, raw); nil != err {
			return fmt.Errorf("failed to store token: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to store token: %v", err)
	}

	return nil
}

func (s *Storage) DeleteToken(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(sessionBucketName).Delete(tokenKeyName); nil != err {
			return fmt.Errorf("failed to delete token: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to delete token: %v", err)
	}

	return nil
}

func tierFromProduct(product string) types.AccountTier {
	switch product {
	case "premium", "unlimited":
		return types.AccountTierPremium
	default:
		return types.AccountTierFree
	}
}
