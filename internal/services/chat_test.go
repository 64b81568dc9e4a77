package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Rayan1605/MainChatApplication/internal/cache"
	"github.com/Rayan1605/MainChatApplication/internal/models"
	"github.com/Rayan1605/MainChatApplication/internal/queue"
	"github.com/Rayan1605/MainChatApplication/internal/realtime"
	apperrors "github.com/Rayan1605/MainChatApplication/pkg/errors"
)

type recorder struct {
	calls []string
}

type mockCache struct {
	mock.Mock
	rec *recorder
}

func (m *mockCache) UpdateMessageReaction(ctx context.Context, conversationID, messageID string, kind models.ReactionKind, username string, action models.ReactionAction) (*models.Message, error) {
	m.rec.calls = append(m.rec.calls, "cache")
	args := m.Called(conversationID, messageID, kind, username, action)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockCache) MarkMessageAsDeleted(ctx context.Context, senderID, receiverID, messageID string, kind models.DeletionKind) (*models.Message, error) {
	m.rec.calls = append(m.rec.calls, "cache")
	args := m.Called(senderID, receiverID, messageID, kind)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

type mockEmitter struct {
	mock.Mock
	rec *recorder
}

func (m *mockEmitter) Emit(event string, payload interface{}) error {
	m.rec.calls = append(m.rec.calls, "emit:"+event)
	return m.Called(event, payload).Error(0)
}

type mockQueue struct {
	mock.Mock
	rec *recorder
}

func (m *mockQueue) AddChatJob(ctx context.Context, name string, data interface{}) error {
	m.rec.calls = append(m.rec.calls, "enqueue:"+name)
	return m.Called(ctx, name, data).Error(0)
}

type fixture struct {
	svc   *ChatService
	cache *mockCache
	chat  *mockEmitter
	queue *mockQueue
	rec   *recorder
}

func newFixture() *fixture {
	rec := &recorder{}
	f := &fixture{
		cache: &mockCache{rec: rec},
		chat:  &mockEmitter{rec: rec},
		queue: &mockQueue{rec: rec},
		rec:   rec,
	}
	f.svc = NewChatService(f.cache, f.chat, f.queue)
	return f
}

func (f *fixture) assertNoSideEffects(t *testing.T) {
	t.Helper()
	f.chat.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	f.queue.AssertNotCalled(t, "AddChatJob", mock.Anything, mock.Anything, mock.Anything)
}

var _ realtime.Emitter = (*mockEmitter)(nil)
var _ ChatJobQueue = (*queue.ChatQueue)(nil)
var _ MessageCache = (*cache.MessageCache)(nil)

func reactionRequest() ReactionRequest {
	return ReactionRequest{
		ConversationID: "conv1",
		MessageID:      "65a1f0c2e4b0a1b2c3d4e5f6",
		Reaction:       models.ReactionLove,
		Type:           models.ReactionAdd,
		Username:       "bob",
	}
}

func TestReaction_UpdatesBroadcastsThenEnqueues(t *testing.T) {
	f := newFixture()
	req := reactionRequest()
	updated := &models.Message{ID: req.MessageID, Reactions: map[string]models.ReactionKind{"bob": models.ReactionLove}}

	f.cache.On("UpdateMessageReaction", "conv1", req.MessageID, models.ReactionLove, "bob", models.ReactionAdd).Return(updated, nil)
	f.chat.On("Emit", EventMessageReaction, updated).Return(nil).Once()
	f.queue.On("AddChatJob", mock.Anything, models.JobUpdateMessageReaction, models.ReactionJob{
		MessageID:    req.MessageID,
		SenderName:   "bob",
		ReactionKind: models.ReactionLove,
		Action:       models.ReactionAdd,
	}).Return(nil).Once()

	got, err := f.svc.Reaction(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, updated, got)

	assert.Equal(t, []string{"cache", "emit:message reaction", "enqueue:updateMessageReaction"}, f.rec.calls)
	f.cache.AssertExpectations(t)
	f.chat.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestReaction_MessageNotFound(t *testing.T) {
	f := newFixture()
	req := reactionRequest()
	f.cache.On("UpdateMessageReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, cache.ErrMessageNotFound)

	_, err := f.svc.Reaction(context.Background(), req)
	assert.ErrorIs(t, err, cache.ErrMessageNotFound)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
	f.assertNoSideEffects(t)
}

func TestReaction_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ReactionRequest)
		field  string
	}{
		{name: "unknown reaction", mutate: func(r *ReactionRequest) { r.Reaction = "meh" }, field: "reaction"},
		{name: "unknown action", mutate: func(r *ReactionRequest) { r.Type = "toggle" }, field: "type"},
		{name: "missing message", mutate: func(r *ReactionRequest) { r.MessageID = "" }, field: "messageId"},
		{name: "message not an object id", mutate: func(r *ReactionRequest) { r.MessageID = "m1" }, field: "messageId"},
		{name: "missing conversation", mutate: func(r *ReactionRequest) { r.ConversationID = "" }, field: "conversationId"},
		{name: "missing username", mutate: func(r *ReactionRequest) { r.Username = "" }, field: "Username"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			req := reactionRequest()
			tt.mutate(&req)

			_, err := f.svc.Reaction(context.Background(), req)
			require.ErrorIs(t, err, ErrValidation)

			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, http.StatusBadRequest, appErr.Code)
			assert.Contains(t, appErr.Message, tt.field)

			f.cache.AssertNotCalled(t, "UpdateMessageReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.assertNoSideEffects(t)
		})
	}
}

func TestReaction_BroadcastFailureStillEnqueues(t *testing.T) {
	f := newFixture()
	req := reactionRequest()
	updated := &models.Message{ID: req.MessageID}

	f.cache.On("UpdateMessageReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(updated, nil)
	f.chat.On("Emit", EventMessageReaction, updated).Return(realtime.ErrBroadcastFailed)
	f.queue.On("AddChatJob", mock.Anything, models.JobUpdateMessageReaction, mock.Anything).Return(nil)

	_, err := f.svc.Reaction(context.Background(), req)
	require.NoError(t, err)
	f.queue.AssertNumberOfCalls(t, "AddChatJob", 1)
}

func TestReaction_EnqueueFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	req := reactionRequest()
	updated := &models.Message{ID: req.MessageID}

	f.cache.On("UpdateMessageReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(updated, nil)
	f.chat.On("Emit", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("AddChatJob", mock.Anything, mock.Anything, mock.Anything).Return(queue.ErrBrokerUnavailable)

	got, err := f.svc.Reaction(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, updated, got)
}

func TestReaction_EnqueueSurvivesRequestCancellation(t *testing.T) {
	f := newFixture()
	req := reactionRequest()
	ctx, cancel := context.WithCancel(context.Background())
	updated := &models.Message{ID: req.MessageID}

	f.cache.On("UpdateMessageReaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(updated, nil)
	f.chat.On("Emit", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("AddChatJob", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.Reaction(ctx, req)
	require.NoError(t, err)
	f.queue.AssertExpectations(t)
}

func deletionRequest(kind models.DeletionKind) DeletionRequest {
	return DeletionRequest{
		MessageID:  "65a1f0c2e4b0a1b2c3d4e5f6",
		SenderID:   "alice-id",
		ReceiverID: "bob-id",
		Kind:       kind,
	}
}

func TestMarkMessageAsDeleted_BroadcastsReadThenChatList(t *testing.T) {
	f := newFixture()
	req := deletionRequest(models.DeleteForEveryone)
	oid, _ := primitive.ObjectIDFromHex(req.MessageID)
	updated := &models.Message{ID: req.MessageID, DeletedForEveryone: true, DeletedForUserIDs: []string{"alice-id"}}

	f.cache.On("MarkMessageAsDeleted", "alice-id", "bob-id", req.MessageID, models.DeleteForEveryone).Return(updated, nil)
	f.chat.On("Emit", EventMessageRead, updated).Return(nil).Once()
	f.chat.On("Emit", EventChatList, updated).Return(nil).Once()
	f.queue.On("AddChatJob", mock.Anything, models.JobMarkMessageAsDeletedInDB, models.DeletionJob{
		MessageID: oid,
		Kind:      models.DeleteForEveryone,
	}).Return(nil).Once()

	got, err := f.svc.MarkMessageAsDeleted(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, got.DeletedForEveryone)

	assert.Equal(t, []string{"cache", "emit:message read", "emit:chat list", "enqueue:markMessageAsDeletedInDB"}, f.rec.calls)
	f.chat.AssertExpectations(t)
	f.queue.AssertExpectations(t)
}

func TestMarkMessageAsDeleted_NotFound(t *testing.T) {
	f := newFixture()
	f.cache.On("MarkMessageAsDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, cache.ErrMessageNotFound)

	_, err := f.svc.MarkMessageAsDeleted(context.Background(), deletionRequest(models.DeleteForMe))
	assert.ErrorIs(t, err, cache.ErrMessageNotFound)
	f.assertNoSideEffects(t)
}

func TestMarkMessageAsDeleted_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  DeletionRequest
	}{
		{name: "bad object id", req: DeletionRequest{MessageID: "123", SenderID: "a", ReceiverID: "b", Kind: models.DeleteForMe}},
		{name: "unknown kind", req: DeletionRequest{MessageID: "65a1f0c2e4b0a1b2c3d4e5f6", SenderID: "a", ReceiverID: "b", Kind: "deleteForThem"}},
		{name: "missing receiver", req: DeletionRequest{MessageID: "65a1f0c2e4b0a1b2c3d4e5f6", SenderID: "a", Kind: models.DeleteForMe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			_, err := f.svc.MarkMessageAsDeleted(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrValidation)
			f.cache.AssertNotCalled(t, "MarkMessageAsDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.assertNoSideEffects(t)
		})
	}
}

func TestMarkMessageAsDeleted_BrokerDownStillSucceeds(t *testing.T) {
	f := newFixture()
	updated := &models.Message{ID: "65a1f0c2e4b0a1b2c3d4e5f6"}
	f.cache.On("MarkMessageAsDeleted", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(updated, nil)
	f.chat.On("Emit", mock.Anything, mock.Anything).Return(nil)
	f.queue.On("AddChatJob", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("dial tcp: connection refused"))

	_, err := f.svc.MarkMessageAsDeleted(context.Background(), deletionRequest(models.DeleteForMe))
	require.NoError(t, err)
	f.chat.AssertNumberOfCalls(t, "Emit", 2)
}
