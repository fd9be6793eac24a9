// Package notifylog 记录处理失败的网关回调，由定时任务重放
package notifylog

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "notify_failures"

// 回调类型
const (
	KindPayment = "payment"
	KindRefund  = "refund"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("notify entry not found")

// Entry 失败回调记录，以 kind:externalRef 为键
type Entry struct {
	Kind        string    `json:"kind"`
	ExternalRef string    `json:"external_ref"`
	Status      string    `json:"status"`
	TxnRef      string    `json:"txn_ref,omitempty"`
	LastError   string    `json:"last_error"`
	Attempts    int       `json:"attempts"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// Key 记录键
func (e *Entry) Key() string {
	return e.Kind + ":" + e.ExternalRef
}

// Store BoltDB 存储
type Store struct {
	db *bolt.DB
}

// Open 打开或创建日志文件
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close 关闭文件
func (s *Store) Close() error {
	return s.db.Close()
}

// Record 记录失败回调
// 同一键的内容未变化时不写入；变化时更新错误信息并累加次数
func (s *Store) Record(entry *Entry) (bool, error) {
	written := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		key := []byte(entry.Key())
		now := time.Now().UTC()

		next := *entry
		if raw := b.Get(key); raw != nil {
			var existing Entry
			if err := json.Unmarshal(raw, &existing); err != nil {
				return err
			}
			if existing.Status == entry.Status &&
				existing.TxnRef == entry.TxnRef &&
				existing.LastError == entry.LastError {
				return nil
			}
			next.FirstSeen = existing.FirstSeen
			next.Attempts = existing.Attempts + 1
		} else {
			next.FirstSeen = now
			next.Attempts = 1
		}
		next.LastSeen = now

		data, err := json.Marshal(&next)
		if err != nil {
			return err
		}
		written = true
		return b.Put(key, data)
	})
	return written, err
}

// Get 获取记录
func (s *Store) Get(key string) (*Entry, error) {
	var entry Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List 按首次出现时间列出记录，kind 为空时返回全部
func (s *Store) List(kind string) ([]*Entry, error) {
	entries := []*Entry{}
	prefix := []byte(kind + ":")

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			if kind != "" && !bytes.HasPrefix(k, prefix) {
				return nil
			}
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, &entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FirstSeen.Before(entries[j].FirstSeen)
	})
	return entries, nil
}

// Delete 删除记录，不存在时不报错
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}
