package ledgerstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"lendex/native/lending"
	"lendex/native/oracle"
)

var (
	bucketBanks     = []byte("banks")
	bucketPositions = []byte("positions")
	bucketFeeds     = []byte("feeds")
)

// positionKeySeparator joins owner and mint in the positions bucket. Owner
// identifiers never contain it, so prefix scans stay unambiguous.
const positionKeySeparator = "/"

// Store is the BoltDB-backed ledger state. It implements lending.State for
// the engine and oracle.FeedRegistry for the price gateway, persisting
// whole records as JSON.
type Store struct {
	db *bolt.DB
}

// Open initialises (and migrates) the BoltDB-backed store at path.
func Open(path string, options *bolt.Options) (*Store, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketBanks, bucketPositions, bucketFeeds} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetBank fetches the bank for a mint, returning (nil, nil) when absent.
func (s *Store) GetBank(mint string) (*lending.Bank, error) {
	var bank *lending.Bank
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBanks).Get([]byte(mint))
		if raw == nil {
			return nil
		}
		decoded := new(lending.Bank)
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("decode bank %s: %w", mint, err)
		}
		bank = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bank, nil
}

// PutBank stores the whole bank record keyed by mint.
func (s *Store) PutBank(bank *lending.Bank) error {
	if bank == nil || strings.TrimSpace(bank.MintAddress) == "" {
		return fmt.Errorf("ledgerstore: bank requires a mint address")
	}
	payload, err := json.Marshal(bank)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBanks).Put([]byte(bank.MintAddress), payload)
	})
}

// ListBanks returns every stored bank in key order.
func (s *Store) ListBanks() ([]*lending.Bank, error) {
	var banks []*lending.Bank
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBanks).ForEach(func(key, raw []byte) error {
			bank := new(lending.Bank)
			if err := json.Unmarshal(raw, bank); err != nil {
				return fmt.Errorf("decode bank %s: %w", key, err)
			}
			banks = append(banks, bank)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return banks, nil
}

func positionKey(owner, mint string) []byte {
	return []byte(owner + positionKeySeparator + mint)
}

// GetPosition fetches the (owner, mint) position, returning (nil, nil) when
// absent.
func (s *Store) GetPosition(owner, mint string) (*lending.UserPosition, error) {
	var position *lending.UserPosition
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPositions).Get(positionKey(owner, mint))
		if raw == nil {
			return nil
		}
		decoded := new(lending.UserPosition)
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("decode position %s %s: %w", owner, mint, err)
		}
		position = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// PutPosition stores the whole position record keyed by owner and mint.
func (s *Store) PutPosition(position *lending.UserPosition) error {
	if position == nil || strings.TrimSpace(position.Owner) == "" || strings.TrimSpace(position.MintAddress) == "" {
		return fmt.Errorf("ledgerstore: position requires owner and mint")
	}
	if strings.Contains(position.Owner, positionKeySeparator) {
		return fmt.Errorf("ledgerstore: owner must not contain %q", positionKeySeparator)
	}
	payload, err := json.Marshal(position)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPositions).Put(positionKey(position.Owner, position.MintAddress), payload)
	})
}

// ListPositions returns every position of one owner via a prefix scan.
func (s *Store) ListPositions(owner string) ([]*lending.UserPosition, error) {
	prefix := []byte(owner + positionKeySeparator)
	var positions []*lending.UserPosition
	err := s.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketPositions).Cursor()
		for key, raw := cursor.Seek(prefix); key != nil && bytes.HasPrefix(key, prefix); key, raw = cursor.Next() {
			position := new(lending.UserPosition)
			if err := json.Unmarshal(raw, position); err != nil {
				return fmt.Errorf("decode position %s: %w", key, err)
			}
			positions = append(positions, position)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func feedKey(symbol string) []byte {
	return []byte(strings.ToUpper(strings.TrimSpace(symbol)))
}

// FeedID resolves the oracle feed identifier for a symbol.
func (s *Store) FeedID(symbol string) (string, error) {
	var feedID string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketFeeds).Get(feedKey(symbol))
		if raw == nil {
			return oracle.ErrUnmappedSymbol
		}
		feedID = string(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	return feedID, nil
}

// PutFeedID stores or replaces the feed identifier for a symbol.
func (s *Store) PutFeedID(symbol, feedID string) error {
	if len(feedKey(symbol)) == 0 || strings.TrimSpace(feedID) == "" {
		return fmt.Errorf("ledgerstore: symbol and feed id required")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFeeds).Put(feedKey(symbol), []byte(strings.TrimSpace(feedID)))
	})
}
