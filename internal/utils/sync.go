package utils

import "sync"

// OptionalMutex is a mutex that can be switched off at construction time for objects whose
// consumers promise to synchronize access themselves
type OptionalMutex struct {
	mutex *sync.Mutex
}

// NewOptionalMutex returns an OptionalMutex that locks only if useMutex is true
func NewOptionalMutex(useMutex bool) OptionalMutex {
	if !useMutex {
		return OptionalMutex{}
	}
	return OptionalMutex{mutex: &sync.Mutex{}}
}

func (m OptionalMutex) Lock() {
	if m.mutex != nil {
		m.mutex.Lock()
	}
}

func (m OptionalMutex) Unlock() {
	if m.mutex != nil {
		m.mutex.Unlock()
	}
}

// Enabled reports whether Lock and Unlock actually lock
func (m OptionalMutex) Enabled() bool {
	return m.mutex != nil
}
