package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulsewire/internal/registry"
)

type nopSender struct{}

func (nopSender) Send([]byte) error { return nil }

func TestRegistry_AddRemove(t *testing.T) {
	r := registry.New()

	r.Add("chat_lobby", "c1", nopSender{})
	r.Add("chat_lobby", "c2", nopSender{})
	assert.Equal(t, []string{"c1", "c2"}, r.MembersOf("chat_lobby"))
	assert.Equal(t, 2, r.Count("chat_lobby"))

	r.Remove("chat_lobby", "c1")
	assert.Equal(t, []string{"c2"}, r.MembersOf("chat_lobby"))

	r.Remove("chat_lobby", "c2")
	assert.Empty(t, r.MembersOf("chat_lobby"))
	assert.Empty(t, r.Groups())
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	r := registry.New()

	r.Add("chat_lobby", "c1", nopSender{})
	r.Add("chat_lobby", "c1", nopSender{})
	assert.Equal(t, 1, r.Count("chat_lobby"))

	// One Remove fully undoes a double Add.
	r.Remove("chat_lobby", "c1")
	assert.Equal(t, 0, r.Count("chat_lobby"))
}

func TestRegistry_RemoveAbsentIsNoop(t *testing.T) {
	r := registry.New()

	r.Remove("chat_lobby", "ghost")
	r.Add("chat_lobby", "c1", nopSender{})
	r.Remove("chat_lobby", "ghost")
	r.Remove("no_such_group", "c1")

	assert.Equal(t, []string{"c1"}, r.MembersOf("chat_lobby"))
}

func TestRegistry_RemoveEverywhere(t *testing.T) {
	r := registry.New()

	r.Add("chat_lobby", "c1", nopSender{})
	r.Add("global_counter", "c1", nopSender{})
	r.Add("chat_lobby", "c2", nopSender{})

	removed := r.RemoveEverywhere("c1")
	assert.Equal(t, []string{"chat_lobby", "global_counter"}, removed)
	assert.Equal(t, []string{"c2"}, r.MembersOf("chat_lobby"))
	assert.Empty(t, r.GroupsOf("c1"))
	assert.Equal(t, 1, r.Connections())

	assert.Nil(t, r.RemoveEverywhere("c1"))
}

func TestRegistry_EmptyGroupsAreDropped(t *testing.T) {
	r := registry.New()

	r.Add("chat_a", "c1", nopSender{})
	r.Add("chat_b", "c1", nopSender{})
	r.RemoveEverywhere("c1")

	assert.Empty(t, r.Groups())
	assert.Equal(t, 0, r.Connections())
}

func TestRegistry_SnapshotIsStable(t *testing.T) {
	r := registry.New()
	r.Add("chat_lobby", "c1", nopSender{})
	r.Add("chat_lobby", "c2", nopSender{})

	snap := r.Snapshot("chat_lobby")
	require.Len(t, snap, 2)

	// Mutating membership after the snapshot must not change it.
	r.Remove("chat_lobby", "c2")
	assert.Len(t, snap, 2)
	assert.Equal(t, "c1", snap[0].ID)
	assert.Equal(t, "c2", snap[1].ID)
}

func TestRegistry_Groups(t *testing.T) {
	r := registry.New()
	r.Add("chat_lobby", "c1", nopSender{})
	r.Add("chat_lobby", "c2", nopSender{})
	r.Add("notifications_public", "c3", nopSender{})

	groups := r.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, registry.GroupInfo{Name: "chat_lobby", Members: 2}, groups[0])
	assert.Equal(t, registry.GroupInfo{Name: "notifications_public", Members: 1}, groups[1])
}

func TestRegistry_ConcurrentChurn(t *testing.T) {
	r := registry.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				r.Add("chat_lobby", id, nopSender{})
				r.Snapshot("chat_lobby")
				r.Remove("chat_lobby", id)
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count("chat_lobby"))
	assert.Equal(t, 0, r.Connections())
}
