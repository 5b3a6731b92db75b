package irc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func openTestStore(t *testing.T) *BanStore {
	t.Helper()
	store, err := OpenBanStore(filepath.Join(t.TempDir(), "bans.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBanStoreAddRemove(t *testing.T) {
	store := openTestStore(t)

	ban := &BanEntry{Hostmask: "*!*@bad.example.com", Reason: "spam", Setter: "root", SetTime: time.Now()}
	assert.NoError(t, store.Add(ban))

	bans, err := store.All()
	assert.NoError(t, err)
	assert.Len(t, bans, 1)

	removed, err := store.Remove("*!*@bad.example.com", false)
	assert.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Remove("*!*@bad.example.com", false)
	assert.NoError(t, err)
	assert.False(t, removed)
}

func TestBanStoreReplaceSameMask(t *testing.T) {
	store := openTestStore(t)

	assert.NoError(t, store.Add(&BanEntry{Hostmask: "*!*@x.net", Reason: "first", SetTime: time.Now()}))
	assert.NoError(t, store.Add(&BanEntry{Hostmask: "*!*@x.net", Reason: "second", SetTime: time.Now()}))

	bans, err := store.All()
	assert.NoError(t, err)
	assert.Len(t, bans, 1)
	assert.Equal(t, "second", bans[0].Reason)
}

func TestBanStoreMatch(t *testing.T) {
	store := openTestStore(t)

	assert.NoError(t, store.Add(&BanEntry{Hostmask: "*!*@10.0.0.*", Reason: "subnet", SetTime: time.Now()}))

	ban, err := store.Match("10.0.0.7")
	assert.NoError(t, err)
	assert.NotNil(t, ban)
	assert.Equal(t, "subnet", ban.Reason)

	ban, err = store.Match("192.168.1.1")
	assert.NoError(t, err)
	assert.Nil(t, ban)
}

func TestBanStoreExpiry(t *testing.T) {
	store := openTestStore(t)

	assert.NoError(t, store.Add(&BanEntry{
		Hostmask:   "*!*@gone.example.com",
		Reason:     "short",
		SetTime:    time.Now().Add(-time.Hour),
		ExpiryTime: time.Now().Add(-time.Minute),
	}))

	bans, err := store.All()
	assert.NoError(t, err)
	assert.Empty(t, bans, "expired bans are pruned on read")
}
