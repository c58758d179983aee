package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"postgate/internal/apperr"
	"postgate/internal/logger"
	"postgate/internal/social"
	"postgate/internal/storage"
)

// Manager hands out a working session per account, reusing the cached record
// when it still passes the client's probe.
type Manager struct {
	store  *Store
	client social.Client
	locks  *storage.AccountLocks
	logger *slog.Logger
}

func NewManager(store *Store, client social.Client, locks *storage.AccountLocks, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if locks == nil {
		locks = storage.NewAccountLocks()
	}
	return &Manager{
		store:  store,
		client: client,
		locks:  locks,
		logger: log.With(logger.Component("session")),
	}
}

// Acquire returns a session for identifier. Callers for the same account are
// serialized; a cached record is used without logging in when it probes
// alive, otherwise exactly one login is made and the record is overwritten.
func (m *Manager) Acquire(ctx context.Context, identifier, secret string) (social.Session, error) {
	key := m.store.Key(identifier)
	log := m.logger.With(logger.Account(key))

	unlock, err := m.locks.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("wait for account lock: %w", err)
	}
	defer unlock()

	sess, err := m.restore(ctx, identifier, secret, key, log)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		log.Info("reusing cached session")
		return sess, nil
	}

	sess, err = m.client.Login(ctx, identifier, secret)
	if err != nil {
		log.Error("login failed", logger.Error(err))
		return nil, apperr.Authentication(err)
	}

	if err := m.persist(identifier, secret, key, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	log.Info("logged in and saved session")
	return sess, nil
}

// restore returns (nil, nil) whenever the record is absent or unusable. Only
// filesystem errors other than "not found" are returned.
func (m *Manager) restore(ctx context.Context, identifier, secret, key string, log *slog.Logger) (social.Session, error) {
	if !m.store.Exists(identifier) {
		log.Debug("no cached session")
		return nil, nil
	}

	record, err := os.ReadFile(m.store.PathFor(identifier))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session record: %w", err)
	}

	blob, err := unseal(secret, key, record)
	if err != nil {
		log.Warn("discarding cached session", logger.Error(err))
		return nil, nil
	}

	sess, err := m.client.Load(blob)
	if err != nil {
		log.Warn("failed loading cached session", logger.Error(err))
		return nil, nil
	}

	if err := m.client.Probe(ctx, sess); err != nil {
		log.Warn("cached session failed probe", logger.Error(err))
		return nil, nil
	}
	return sess, nil
}

func (m *Manager) persist(identifier, secret, key string, sess social.Session) error {
	blob, err := m.client.Save(sess)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}

	record, err := seal(secret, key, blob)
	if err != nil {
		return err
	}

	return writeFileAtomic(m.store.PathFor(identifier), record)
}

// writeFileAtomic replaces path so readers never see a half-written record.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp record: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}
