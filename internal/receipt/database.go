package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucket = "receipts"
	itemBucket    = "items"
)

// ErrNotFound is returned by lookups when no record carries the given
// identity. The upsert path branches on it.
var ErrNotFound = errors.New("not found")

// DB is the persistence collaborator: query-by-identity plus create, for
// receipts and their items.
type DB interface {
	// FindReceipt returns the receipt with the given identity, or
	// ErrNotFound.
	FindReceipt(id string) (*Receipt, error)

	// SaveReceipt stores a receipt keyed by its identity.
	SaveReceipt(receipt *Receipt) error

	// ListReceipts returns all receipts.
	ListReceipts() ([]*Receipt, error)

	// SaveItem stores an item under its receipt.
	SaveItem(item *Item) error

	// ListItems returns all items of a receipt.
	ListItems(receiptID string) ([]*Item, error)

	// Close closes the database.
	Close() error
}

// BoltDB implements DB on a bbolt file.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database file.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(receiptBucket)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(itemBucket)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// FindReceipt retrieves a receipt by identity, or ErrNotFound.
func (b *BoltDB) FindReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SaveReceipt stores a receipt keyed by its identity.
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return tx.Bucket([]byte(receiptBucket)).Put([]byte(receipt.ID), data)
	})
}

// ListReceipts returns all receipts.
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucket)).ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// SaveItem stores an item keyed by receiptID/itemID, so a retried batch
// overwrites instead of duplicating.
func (b *BoltDB) SaveItem(item *Item) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		key := itemKey(item.ReceiptID, item.ID)
		return tx.Bucket([]byte(itemBucket)).Put(key, data)
	})
}

// ListItems returns all items stored under a receipt.
func (b *BoltDB) ListItems(receiptID string) ([]*Item, error) {
	items := make([]*Item, 0)
	prefix := itemKey(receiptID, "")
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(itemBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			items = append(items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func itemKey(receiptID, itemID string) []byte {
	return []byte(receiptID + "/" + itemID)
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
