package toolbox

import (
	"sort"
	"sync"
)

// StringSet is a set of strings, typically node IDs. It is safe for
// concurrent use.
type StringSet struct {
	Strings []string
	Mutex   *sync.RWMutex
}

// NewStringSet creates a new empty set
func NewStringSet() StringSet {
	return StringSet{
		Strings: make([]string, 0),
		Mutex:   &sync.RWMutex{},
	}
}

// Sync replaces the contents of the set. It returns true if the set has
// changed.
func (s *StringSet) Sync(values ...string) bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	if len(s.Strings) != len(values) {
		s.Strings = append([]string{}, values...)
		return true
	}
	for i := range s.Strings {
		found := false
		for j := range values {
			if s.Strings[i] == values[j] {
				found = true
				break
			}
		}
		if !found {
			s.Strings = append([]string{}, values...)
			return true
		}
	}
	return false
}

// Add adds a string to the set. Returns false if it already is a member.
func (s *StringSet) Add(value string) bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	for _, v := range s.Strings {
		if v == value {
			return false
		}
	}
	s.Strings = append(s.Strings, value)
	return true
}

// Remove removes a string from the set. Returns false if it isn't a member.
func (s *StringSet) Remove(value string) bool {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	for i, v := range s.Strings {
		if v == value {
			s.Strings = append(s.Strings[:i], s.Strings[i+1:]...)
			return true
		}
	}
	return false
}

// Contains returns true if the string is a member of the set
func (s *StringSet) Contains(value string) bool {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	for _, v := range s.Strings {
		if v == value {
			return true
		}
	}
	return false
}

// Size returns the number of members
func (s *StringSet) Size() int {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	return len(s.Strings)
}

// List returns a sorted copy of the members
func (s *StringSet) List() []string {
	s.Mutex.RLock()
	defer s.Mutex.RUnlock()
	ret := append([]string{}, s.Strings...)
	sort.Strings(ret)
	return ret
}

// Clear removes all members
func (s *StringSet) Clear() {
	s.Mutex.Lock()
	defer s.Mutex.Unlock()
	s.Strings = []string{}
}
