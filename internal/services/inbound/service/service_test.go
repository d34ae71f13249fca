package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"newsroom/internal/adapters/collect/email"
	perr "newsroom/internal/platform/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memInbox struct {
	rows     []email.Message
	byMID    map[string]int
	consumed map[string]bool
}

func newMemInbox() *memInbox {
	return &memInbox{byMID: map[string]int{}, consumed: map[string]bool{}}
}

func (m *memInbox) Store(_ context.Context, msg email.Message) (string, bool, error) {
	if i, ok := m.byMID[msg.MessageID]; ok {
		return m.rows[i].ID, false, nil
	}
	msg.ID = strconv.Itoa(len(m.rows) + 1)
	m.byMID[msg.MessageID] = len(m.rows)
	m.rows = append(m.rows, msg)
	return msg.ID, true, nil
}

func (m *memInbox) Pending(_ context.Context, limit int) ([]email.Message, error) {
	var out []email.Message
	for _, r := range m.rows {
		if !m.consumed[r.ID] && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memInbox) MarkConsumed(_ context.Context, id string) error {
	for _, r := range m.rows {
		if r.ID == id {
			m.consumed[id] = true
			return nil
		}
	}
	return perr.ErrNotFound
}

func classifier(t *testing.T) *email.Classifier {
	t.Helper()
	cls, err := email.NewClassifier([]email.Mapping{
		{ID: "city-hall", SourceName: "City Hall", Domain: "city.gov", Tier: "high"},
	})
	require.NoError(t, err)
	return cls
}

func TestReceiveIsIdempotent(t *testing.T) {
	inbox := newMemInbox()
	svc := newSvc(inbox, classifier(t))
	svc.now = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	in := Input{MessageID: "<abc@city.gov>", From: "Press Office <Press@City.gov>", Subject: "Road closures"}

	rc, err := svc.Receive(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, rc.Created)
	assert.True(t, rc.Matched)
	assert.Equal(t, "city-hall", rc.Mapping.ID)

	again, err := svc.Receive(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, rc.ID, again.ID)

	require.Len(t, inbox.rows, 1)
	stored := inbox.rows[0]
	assert.Equal(t, "abc@city.gov", stored.MessageID)
	assert.Equal(t, "press@city.gov", stored.FromAddress)
	assert.Equal(t, "Press Office", stored.FromName)
	assert.Equal(t, svc.now(), stored.ReceivedAt)
}

func TestReceiveUnmappedSenderIsStored(t *testing.T) {
	inbox := newMemInbox()
	svc := newSvc(inbox, classifier(t))

	rc, err := svc.Receive(context.Background(), Input{MessageID: "x1", From: "someone@example.org"})
	require.NoError(t, err)
	assert.True(t, rc.Created)
	assert.False(t, rc.Matched)

	pending, err := svc.Pending(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	require.NoError(t, svc.MarkConsumed(context.Background(), pending[0].ID))
	pending, _ = svc.Pending(context.Background(), 10)
	assert.Empty(t, pending)
}

func TestClassify(t *testing.T) {
	svc := newSvc(newMemInbox(), classifier(t))

	v := svc.Classify("Clerk <clerk@news.city.gov>")
	assert.True(t, v.Matched)
	assert.Equal(t, "clerk@news.city.gov", v.Address)
	assert.Equal(t, "Clerk", v.Name)

	v = svc.Classify("nobody@elsewhere.net")
	assert.False(t, v.Matched)
	assert.Nil(t, v.Mapping)
}

func TestNilClassifier(t *testing.T) {
	svc := newSvc(newMemInbox(), nil)
	assert.False(t, svc.Classify("a@b.c").Matched)
}
