package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/tlschat/internal/chat"
	"github.com/mcoot/tlschat/internal/dependencies/mocks"
	"github.com/mcoot/tlschat/internal/services/auth"
	"github.com/mcoot/tlschat/internal/storage/memory"
	"github.com/mcoot/tlschat/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
	Memory     *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies,
// a locked registry, cheap password hashing and fast polling
func NewTestApp() *TestApp {
	return NewTestAppWithRegistry(chat.NewLockedRegistry())
}

// NewTestAppWithRegistry is NewTestApp with the given registry
func NewTestAppWithRegistry(registry chat.Registry) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	connCfg := chat.DefaultConnConfig()
	connCfg.PollInterval = 5 * time.Millisecond

	app := newWithDependencies(store, registry, mockClock, mockRandom,
		auth.Config{BcryptCost: bcrypt.MinCost}, connCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		Memory:     store,
	}
}
