package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/tlschat/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	intnResults []int
	intnIndex   int

	stringResults []string
	stringIndex   int

	// counter backs String once the queue is drained so ids stay unique
	counter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.intnResults) {
		return 0
	}
	result := r.intnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// String returns the next queued result. When the queue is empty it returns
// a zero-padded sequence number of the requested length.
func (r *MockRandom) String(length int, alphabet string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stringIndex < len(r.stringResults) {
		result := r.stringResults[r.stringIndex]
		r.stringIndex++
		return result
	}
	r.counter++
	return fmt.Sprintf("%0*d", length, r.counter)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = append(r.intnResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stringResults = append(r.stringResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnResults = nil
	r.intnIndex = 0
	r.stringResults = nil
	r.stringIndex = 0
	r.counter = 0
}
