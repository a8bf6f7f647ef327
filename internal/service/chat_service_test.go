package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/logging"
)

type chatFixture struct {
	svc    ChatService
	chats  *fakeChatRepo
	coach  *domain.Coach
	client *domain.Client
}

func newChatFixture() *chatFixture {
	coaches := &fakeCoachRepo{}
	clients := newFakeClientRepo()
	f := &chatFixture{
		chats:  newFakeChatRepo(),
		coach:  coaches.add(domain.Coach{Name: "Coach"}),
		client: clients.add(domain.Client{Name: "Anna"}),
	}
	f.svc = NewChatService(f.chats, coaches, clients, logging.Nop())
	return f
}

func TestOpenThread_Idempotent(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()

	t1, err := f.svc.OpenThread(ctx, f.coach.ID, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadKey(f.coach.ID.Hex(), f.client.ID.Hex()), t1.ID)
	assert.Equal(t, "Anna", t1.ParticipantNames[f.client.ID.Hex()])

	_, err = f.svc.Send(ctx, t1.ID, f.client.ID.Hex(), "hello")
	require.NoError(t, err)

	t2, err := f.svc.ClientThread(ctx, f.client.ID)
	require.NoError(t, err)
	assert.Equal(t, t1.ID, t2.ID)
	assert.Equal(t, "hello", t2.LastMessage, "reopening does not reset the preview")
	assert.Len(t, f.chats.threads, 1)
}

func TestSend(t *testing.T) {
	f := newChatFixture()
	ctx := context.Background()
	th, err := f.svc.OpenThread(ctx, f.coach.ID, f.client.ID)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, th.ID, f.coach.ID.Hex(), "  ")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = f.svc.Send(ctx, th.ID, f.coach.ID.Hex(), strings.Repeat("a", MaxMessageLength+1))
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = f.svc.Send(ctx, th.ID, "stranger", "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = f.svc.Send(ctx, "missing", f.coach.ID.Hex(), "hi")
	assert.ErrorIs(t, err, ErrThreadNotFound)

	_, err = f.svc.Send(ctx, th.ID, f.coach.ID.Hex(), "first")
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, th.ID, f.client.ID.Hex(), "second")
	require.NoError(t, err)

	msgs, err := f.svc.Messages(ctx, th.ID, f.client.ID.Hex())
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Text)
	assert.Equal(t, "second", msgs[1].Text)

	threads, err := f.svc.ListThreads(ctx, f.coach.ID.Hex())
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "second", threads[0].LastMessage)
}

func TestSubscribe_StopsWithContext(t *testing.T) {
	f := newChatFixture()
	th, err := f.svc.OpenThread(context.Background(), f.coach.ID, f.client.ID)
	require.NoError(t, err)

	_, err = f.svc.Subscribe(context.Background(), th.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotParticipant)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := f.svc.Subscribe(ctx, th.ID, f.client.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.Send(context.Background(), th.ID, f.coach.ID.Hex(), "live")
	require.NoError(t, err)

	select {
	case m := <-stream:
		assert.Equal(t, "live", m.Text)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case _, ok := <-stream:
		assert.False(t, ok, "stream closes when the subscriber goes away")
	case <-time.After(time.Second):
		t.Fatal("stream not closed")
	}
}
