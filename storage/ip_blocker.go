package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"webmail/utils"

	bolt "go.etcd.io/bbolt"
)

var ipBucket = []byte("blocked_ips")

// IPBlockStatus is the login state of a client IP
type IPBlockStatus struct {
	Blocked  bool `json:"blocked"`
	TimeLeft int  `json:"timeLeft,omitempty"`
	Attempts int  `json:"attempts"`
}

// LoginFailure is the outcome of recording a failed login
type LoginFailure struct {
	Attempts     int
	Blocked      bool
	BlockedUntil *time.Time
}

type ipEntry struct {
	Attempts     int        `json:"attempts"`
	BlockedUntil *time.Time `json:"blockedUntil,omitempty"`
}

func (e *ipEntry) blockedAt(now time.Time) bool {
	return e.BlockedUntil != nil && e.BlockedUntil.After(now)
}

func (e *ipEntry) expiredAt(now time.Time) bool {
	return e.BlockedUntil != nil && !e.BlockedUntil.After(now)
}

// IPBlocker counts failed logins per IP and blocks an IP once it reaches
// maxAttempts. State is kept in memory and written through to BoltDB.
type IPBlocker struct {
	db          *bolt.DB
	mu          sync.Mutex
	entries     map[string]*ipEntry
	maxAttempts int
	blockFor    time.Duration
	now         func() time.Time
}

// NewIPBlocker opens the block database and loads the unexpired entries
func NewIPBlocker(dbPath string, maxAttempts int, blockFor time.Duration) (*IPBlocker, error) {
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ipBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	b := &IPBlocker{
		db:          db,
		entries:     map[string]*ipEntry{},
		maxAttempts: maxAttempts,
		blockFor:    blockFor,
		now:         time.Now,
	}
	if err := b.load(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Close closes the database
func (b *IPBlocker) Close() error {
	return b.db.Close()
}

func (b *IPBlocker) load() error {
	now := b.now()
	var expired [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(ipBucket).ForEach(func(k, v []byte) error {
			var entry ipEntry
			if err := json.Unmarshal(v, &entry); err != nil || entry.expiredAt(now) {
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			b.entries[string(k)] = &entry
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("failed to load blocked IPs: %v", err)
	}
	if len(expired) == 0 {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ipBucket)
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *IPBlocker) save(ip string, entry *ipEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(ipBucket)
		if entry == nil {
			return bucket.Delete([]byte(ip))
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode block entry: %v", err)
		}
		return bucket.Put([]byte(ip), encoded)
	})
}

// Status reports whether ip is blocked, the seconds left and the attempt count
func (b *IPBlocker) Status(ip string) IPBlockStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[ip]
	if !ok {
		return IPBlockStatus{}
	}
	now := b.now()
	if entry.blockedAt(now) {
		left := int(math.Ceil(entry.BlockedUntil.Sub(now).Seconds()))
		return IPBlockStatus{Blocked: true, TimeLeft: left, Attempts: entry.Attempts}
	}
	if entry.expiredAt(now) {
		delete(b.entries, ip)
		if err := b.save(ip, nil); err != nil {
			utils.Log.Error("Failed to drop expired block for %s: %v", ip, err)
		}
		return IPBlockStatus{}
	}
	return IPBlockStatus{Attempts: entry.Attempts}
}

// RecordFailure counts a failed login. Reaching maxAttempts blocks the IP.
// Attempts are not counted while a block is in force.
func (b *IPBlocker) RecordFailure(ip string) (LoginFailure, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	entry, ok := b.entries[ip]
	if !ok || entry.expiredAt(now) {
		entry = &ipEntry{}
		b.entries[ip] = entry
	}
	if !entry.blockedAt(now) {
		entry.Attempts++
	}
	if entry.Attempts >= b.maxAttempts && entry.BlockedUntil == nil {
		until := now.Add(b.blockFor)
		entry.BlockedUntil = &until
		utils.Log.Warn("Blocking IP %s until %s after %d failed logins", ip, until.Format(time.RFC3339), entry.Attempts)
	}

	result := LoginFailure{Attempts: entry.Attempts, Blocked: entry.blockedAt(now), BlockedUntil: entry.BlockedUntil}
	return result, b.save(ip, entry)
}

// Reset clears the failed attempts of ip
func (b *IPBlocker) Reset(ip string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[ip]; !ok {
		return nil
	}
	delete(b.entries, ip)
	return b.save(ip, nil)
}

// MaxAttempts is the number of failures that triggers a block
func (b *IPBlocker) MaxAttempts() int {
	return b.maxAttempts
}

// Cleanup drops expired blocks and returns how many were removed
func (b *IPBlocker) Cleanup() (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for ip, entry := range b.entries {
		if !entry.expiredAt(now) {
			continue
		}
		delete(b.entries, ip)
		if err := b.save(ip, nil); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
