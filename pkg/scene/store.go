package scene

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/alex-ozdemir/raylet/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketObjects  = []byte("objects")
	bucketTreelets = []byte("treelets")
)

// Store persists a Registry to an embedded key-value database, so a
// restarted coordinator can rehydrate the topology it already computed
// instead of re-scanning the scene dump.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if necessary) the registry database under
// dataDir.
func OpenStore(dataDir string) (*Store, error) {
	db, err := bolt.Open(filepath.Join(dataDir, "scene.db"), 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("scene: open store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketObjects); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTreelets)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("scene: create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes every object and treelet record in r to the store,
// overwriting whatever was there before.
func (s *Store) Save(r *Registry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		objects := tx.Bucket(bucketObjects)
		for key, rec := range r.objects {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("scene: marshal object %s/%d: %w", key.Type, key.ID, err)
			}
			if err := objects.Put(objectKeyBytes(key), data); err != nil {
				return err
			}
		}
		treelets := tx.Bucket(bucketTreelets)
		for id, t := range r.treelets {
			data, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("scene: marshal treelet %d: %w", id, err)
			}
			if err := treelets.Put(treeletKeyBytes(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load rehydrates a Registry from whatever was last saved. It returns
// (nil, false, nil) if the store is empty, so the caller knows to fall
// back to re-scanning the scene dump manifest.
func (s *Store) Load() (*Registry, bool, error) {
	r := NewRegistry()
	empty := true

	err := s.db.View(func(tx *bolt.Tx) error {
		objects := tx.Bucket(bucketObjects)
		if err := objects.ForEach(func(k, v []byte) error {
			empty = false
			var rec types.ObjectRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("scene: unmarshal object %s: %w", k, err)
			}
			r.objects[rec.Key] = &rec
			return nil
		}); err != nil {
			return err
		}

		treelets := tx.Bucket(bucketTreelets)
		return treelets.ForEach(func(k, v []byte) error {
			empty = false
			var t types.Treelet
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("scene: unmarshal treelet %s: %w", k, err)
			}
			r.treelets[t.ID] = &t
			r.treeletIDs = append(r.treeletIDs, t.ID)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("scene: load store: %w", err)
	}
	// bbolt iterates keys in byte order ("10" before "2"); restore the
	// ascending order TreeletIDs promises.
	sort.Slice(r.treeletIDs, func(i, j int) bool { return r.treeletIDs[i] < r.treeletIDs[j] })
	if empty {
		return nil, false, nil
	}
	return r, true, nil
}

func objectKeyBytes(key types.ObjectKey) []byte {
	return []byte(fmt.Sprintf("%s:%d", key.Type, key.ID))
}

func treeletKeyBytes(id types.TreeletID) []byte {
	return []byte(fmt.Sprintf("%d", id))
}
