package kvstore

import (
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/nitrited/nitrite/pkg/nitriteerr"
)

// BoltStore is the persistent Store backend, one bbolt file per database
// with one bucket per collection/index map plus the reserved metadata
// bucket, grounded on the teacher's pkg/storage/boltdb.go.
type BoltStore struct {
	mu   sync.Mutex
	db   *bolt.DB
	maps map[string]*BoltMap
}

// OpenBoltStore opens (creating if absent) a bbolt file at
// filepath.Join(dataDir, "nitrite.db").
func OpenBoltStore(dataDir string) (*BoltStore, error) {
	path := filepath.Join(dataDir, "nitrite.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, nitriteerr.IO("failed to open database at "+path, err)
	}
	return &BoltStore{db: db, maps: make(map[string]*BoltMap)}, nil
}

func (s *BoltStore) Map(name string) (Map, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[name]; ok {
		return m, nil
	}
	m, err := NewBoltMap(s.db, name)
	if err != nil {
		return nil, err
	}
	s.maps[name] = m
	return m, nil
}

func (s *BoltStore) DropMap(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.maps[name]
	if !ok {
		var err error
		m, err = NewBoltMap(s.db, name)
		if err != nil {
			return err
		}
	}
	if err := m.Dispose(); err != nil {
		return err
	}
	delete(s.maps, name)
	return nil
}

func (s *BoltStore) MapNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.maps))
	for name := range s.maps {
		if name == MetadataMapName {
			continue
		}
		out = append(out, name)
	}
	return out
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.maps {
		_ = m.Close()
	}
	return s.db.Close()
}
