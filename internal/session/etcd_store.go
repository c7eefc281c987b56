package session

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdKV is the subset of *clientv3.Client used by EtcdStore.
type EtcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseKeepAliveResponse, error)
}

// EtcdStore implements Registry on etcd. Each entry is a plain key holding the
// engine session ID. With a positive TTL the key is attached to a lease that
// later Sets renew, so a conversation holds one lease for its lifetime.
type EtcdStore struct {
	kv     EtcdKV
	prefix string
	ttl    time.Duration
}

// NewEtcdStore creates an etcd-backed registry. ttl below one second disables leases.
func NewEtcdStore(kv EtcdKV, prefix string, ttl time.Duration) *EtcdStore {
	if prefix == "" {
		prefix = "/voicebridge/sessions/"
	}
	return &EtcdStore{kv: kv, prefix: prefix, ttl: ttl}
}

// DialEtcd connects to the given etcd endpoints.
func DialEtcd(endpoints []string, dialTimeout time.Duration) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd dial: %w", err)
	}
	return cli, nil
}

// Get retrieves the session ID for a conversation.
func (s *EtcdStore) Get(ctx context.Context, conversationID string) (string, error) {
	resp, err := s.kv.Get(ctx, s.prefix+conversationID)
	if err != nil {
		return "", fmt.Errorf("etcd get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return "", nil
	}
	return string(resp.Kvs[0].Value), nil
}

// Set stores the session ID for a conversation.
func (s *EtcdStore) Set(ctx context.Context, conversationID, sessionID string) error {
	key := s.prefix + conversationID
	var opts []clientv3.OpOption
	if secs := int64(s.ttl / time.Second); secs > 0 {
		renewed, err := s.renew(ctx, key, sessionID)
		if err != nil {
			return err
		}
		if renewed {
			return nil
		}
		lease, err := s.kv.Grant(ctx, secs)
		if err != nil {
			return fmt.Errorf("etcd grant: %w", err)
		}
		opts = append(opts, clientv3.WithLease(lease.ID))
	}

	if _, err := s.kv.Put(ctx, key, sessionID, opts...); err != nil {
		return fmt.Errorf("etcd put: %w", err)
	}
	return nil
}

// renew refreshes the lease already attached to key and writes sessionID
// under it. It reports false when the key has no live lease to reuse.
func (s *EtcdStore) renew(ctx context.Context, key, sessionID string) (bool, error) {
	resp, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("etcd get: %w", err)
	}
	if len(resp.Kvs) == 0 || resp.Kvs[0].Lease == 0 {
		return false, nil
	}
	if _, err := s.kv.KeepAliveOnce(ctx, clientv3.LeaseID(resp.Kvs[0].Lease)); err != nil {
		return false, nil
	}
	// The key may have expired between the read and the write.
	if _, err := s.kv.Put(ctx, key, sessionID, clientv3.WithIgnoreLease()); err != nil {
		return false, nil
	}
	return true, nil
}

// Delete removes the mapping for a conversation.
func (s *EtcdStore) Delete(ctx context.Context, conversationID string) error {
	if _, err := s.kv.Delete(ctx, s.prefix+conversationID); err != nil {
		return fmt.Errorf("etcd delete: %w", err)
	}
	return nil
}
