package kvstore

import "sync"

// shard holds the key/value pairs for a single partition. Once a shard is
// detached it rejects all further access and the caller must re-resolve the
// partition.
type shard struct {
	mutex    *sync.RWMutex
	data     map[string]string
	detached bool
}

func newShard(data map[string]string) *shard {
	if data == nil {
		data = make(map[string]string)
	}
	return &shard{
		mutex: &sync.RWMutex{},
		data:  data,
	}
}

// get returns the value for the key. The second return value is false if
// the shard has been detached.
func (s *shard) get(key string) (string, bool, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.detached {
		return "", false, false
	}
	v, ok := s.data[key]
	return v, ok, true
}

// put sets the value. It returns false if the shard has been detached.
func (s *shard) put(key, value string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.detached {
		return false
	}
	s.data[key] = value
	return true
}

// merge adds the keys that aren't already set in the shard.
func (s *shard) merge(data map[string]string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.detached {
		return false
	}
	for k, v := range data {
		if _, exists := s.data[k]; !exists {
			s.data[k] = v
		}
	}
	return true
}

// detach marks the shard as detached and hands over the contents. Writers
// that hold the lock finish before the contents are handed over.
func (s *shard) detach() map[string]string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.detached {
		return nil
	}
	s.detached = true
	ret := s.data
	s.data = nil
	return ret
}

func (s *shard) size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.data)
}
