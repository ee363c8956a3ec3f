package services_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bidhall/internal/domain"
	"bidhall/internal/services"
	"bidhall/pkg/logger"
)

// fakeSession records enqueued payloads and can simulate a full buffer.
type fakeSession struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
	full bool
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (f *fakeSession) ID() string                 { return f.id }
func (f *fakeSession) Identity() *domain.Identity { return nil }
func (f *fakeSession) Close() error               { return nil }

func (f *fakeSession) Enqueue(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return true
}

func (f *fakeSession) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestRegistryJoinAndMembers(t *testing.T) {
	r := services.NewRoomRegistry(logger.New())
	s1 := newFakeSession("s1")
	s2 := newFakeSession("s2")

	r.Join("a1", s1)
	r.Join("a1", s2)
	r.Join("a2", s1)

	assert.Len(t, r.MembersOf("a1"), 2)
	assert.Len(t, r.MembersOf("a2"), 1)
	assert.Empty(t, r.MembersOf("unknown"))

	// Joining twice is a no-op.
	r.Join("a1", s1)
	assert.Len(t, r.MembersOf("a1"), 2)
}

func TestRegistryLeaveDropsEmptyRoom(t *testing.T) {
	r := services.NewRoomRegistry(logger.New())
	s1 := newFakeSession("s1")

	r.Join("a1", s1)
	r.Leave("a1", s1)
	assert.Empty(t, r.MembersOf("a1"))

	// Leaving again, or leaving a room never joined, is harmless.
	r.Leave("a1", s1)
	r.Leave("never-joined", s1)
}

func TestRegistryLeaveAll(t *testing.T) {
	r := services.NewRoomRegistry(logger.New())
	s1 := newFakeSession("s1")
	s2 := newFakeSession("s2")

	r.Join("a1", s1)
	r.Join("a2", s1)
	r.Join("a1", s2)

	r.LeaveAll(s1)

	members := r.MembersOf("a1")
	require.Len(t, members, 1)
	assert.Equal(t, "s2", members[0].ID())
	assert.Empty(t, r.MembersOf("a2"))
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := services.NewRoomRegistry(logger.New())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := newFakeSession(string(rune('a' + n)))
			for j := 0; j < 100; j++ {
				r.Join("a1", s)
				r.Join("a2", s)
				r.MembersOf("a1")
				r.Leave("a1", s)
				r.LeaveAll(s)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, r.MembersOf("a1"))
	assert.Empty(t, r.MembersOf("a2"))
}
