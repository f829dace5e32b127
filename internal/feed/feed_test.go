package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/smart-bookmarks/internal/model"
)

func TestValidate(t *testing.T) {
	bm := testBookmark("alice", "a1")
	other := testBookmark("alice", "a2")

	tests := []struct {
		name    string
		event   model.ChangeEvent
		wantErr bool
	}{
		{name: "insert", event: InsertEvent(bm)},
		{name: "delete", event: DeleteEvent("alice", "a1")},
		{name: "missing owner", event: DeleteEvent("", "a1"), wantErr: true},
		{name: "missing id", event: DeleteEvent("alice", ""), wantErr: true},
		{name: "insert without row", event: model.ChangeEvent{Type: model.EventInsert, OwnerID: "alice", ID: "a1"}, wantErr: true},
		{name: "insert with mismatched row", event: model.ChangeEvent{Type: model.EventInsert, OwnerID: "alice", ID: "a1", Bookmark: &other}, wantErr: true},
		{name: "unknown type", event: model.ChangeEvent{Type: "update", OwnerID: "alice", ID: "a1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.event)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	bm := testBookmark("alice", "a1")

	data, err := Encode(InsertEvent(bm))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"insert"`)

	got, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, got.Bookmark)
	assert.Equal(t, bm.ID, got.Bookmark.ID)
	assert.Equal(t, bm.URL, got.Bookmark.URL)
	assert.Equal(t, bm.OwnerID, got.Bookmark.OwnerID)
	assert.True(t, bm.CreatedAt.Equal(got.Bookmark.CreatedAt))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"delete","ownerId":"alice"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "bookmarks:owner:cv37rs3pp9olc6atsptg", ChannelName("cv37rs3pp9olc6atsptg"))
}

func TestConnectOptions_Validate(t *testing.T) {
	ok := DefaultConnectOptions("localhost:6379", "", 0)
	assert.NoError(t, ok.validate())

	noAddr := ok
	noAddr.Addr = ""
	assert.Error(t, noAddr.validate())

	badRetry := ok
	badRetry.RetryInterval = 0
	assert.Error(t, badRetry.validate())
}

func TestConnect_GivesUpAfterTimeout(t *testing.T) {
	opts := DefaultConnectOptions("127.0.0.1:1", "", 0)
	opts.ConnectTimeout = 200 * time.Millisecond
	opts.RetryInterval = 20 * time.Millisecond
	opts.MaxWait = 50 * time.Millisecond
	opts.PingTimeout = 50 * time.Millisecond

	start := time.Now()
	_, err := Connect(context.Background(), opts, discardLogger())

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
