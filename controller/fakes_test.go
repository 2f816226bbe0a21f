package controller

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"instaclone/apperr"
	"instaclone/events"
	models "instaclone/model"
	"instaclone/realtime"
	"instaclone/repository"
	"instaclone/session"
)

// loggedInSession builds a session store with uid already signed in.
func loggedInSession(t interface{ Fatalf(string, ...interface{}) }, uid uuid.UUID) *session.Store {
	store := session.NewStore(session.NewMemoryKV())
	if err := store.Save(context.Background(), uid); err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return store
}

type fakeIdentity struct {
	uid       uuid.UUID
	signUpErr error
}

func (f *fakeIdentity) SignIn(ctx context.Context, email, password string) (uuid.UUID, error) {
	return f.uid, nil
}

func (f *fakeIdentity) SignUp(ctx context.Context, email, password string) (uuid.UUID, error) {
	if f.signUpErr != nil {
		return uuid.Nil, f.signUpErr
	}
	return f.uid, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context) error { return nil }

func (f *fakeIdentity) CurrentUser() (uuid.UUID, bool) { return f.uid, true }

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User

	suggestions []*models.User
	updateErr   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUserRepo) add(user *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.add(user)
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, userIDs []uuid.UUID) ([]*models.User, error) {
	var out []*models.User
	for _, id := range userIDs {
		if u, err := f.GetByID(ctx, id); err == nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (f *fakeUserRepo) HandleExists(ctx context.Context, handle string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, input *models.UpdateProfileInput) (*models.User, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if input.Username != nil {
		user.Username = *input.Username
	}
	if input.Bio != nil {
		user.Bio = input.Bio
	}
	if input.ProfileImage != nil {
		user.ProfileImage = input.ProfileImage
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) SearchByHandlePrefix(ctx context.Context, prefix string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.User
	for _, u := range f.users {
		if len(u.Handle) >= len(prefix) && u.Handle[:len(prefix)] == prefix {
			copied := *u
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out, nil
}

func (f *fakeUserRepo) GetSuggestions(ctx context.Context, selfID uuid.UUID, limit int) ([]*models.User, error) {
	return f.suggestions, nil
}

func (f *fakeUserRepo) IncrementPostsCount(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		u.PostsCount++
	}
	return nil
}

func (f *fakeUserRepo) DecrementPostsCount(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok && u.PostsCount > 0 {
		u.PostsCount--
	}
	return nil
}

type fakeFollowRepo struct {
	mu        sync.Mutex
	following map[uuid.UUID]map[uuid.UUID]bool

	followers []*models.Follower

	addEdgeErr        error
	removeEdgeErr     error
	removeFollowerErr error
	countErr          error
}

func newFakeFollowRepo() *fakeFollowRepo {
	return &fakeFollowRepo{following: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (f *fakeFollowRepo) AddEdge(ctx context.Context, selfID uuid.UUID, other *models.User) error {
	if f.addEdgeErr != nil {
		return f.addEdgeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.following[selfID] == nil {
		f.following[selfID] = make(map[uuid.UUID]bool)
	}
	f.following[selfID][other.ID] = true
	return nil
}

func (f *fakeFollowRepo) RemoveEdge(ctx context.Context, selfID, otherID uuid.UUID) error {
	if f.removeEdgeErr != nil {
		return f.removeEdgeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.following[selfID], otherID)
	return nil
}

func (f *fakeFollowRepo) IncrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error {
	return f.countErr
}

func (f *fakeFollowRepo) DecrementCounts(ctx context.Context, selfID, otherID uuid.UUID) error {
	return f.countErr
}

func (f *fakeFollowRepo) RemoveFollower(ctx context.Context, selfID, followerID uuid.UUID) error {
	if f.removeFollowerErr != nil {
		return f.removeFollowerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.followers[:0]
	for _, fo := range f.followers {
		if fo.FollowerID != followerID {
			out = append(out, fo)
		}
	}
	f.followers = out
	return nil
}

func (f *fakeFollowRepo) GetFollowers(ctx context.Context, userID uuid.UUID) ([]*models.Follower, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Follower(nil), f.followers...), nil
}

func (f *fakeFollowRepo) GetFollowing(ctx context.Context, userID uuid.UUID) ([]*models.Following, error) {
	return nil, nil
}

func (f *fakeFollowRepo) GetFollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for id := range f.following[userID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeFollowRepo) IsFollowing(ctx context.Context, selfID, otherID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following[selfID][otherID], nil
}

type fakePostRepo struct {
	mu    sync.Mutex
	posts []*models.Post

	uploadErr error
	deleteErr error
	feed      []*models.Post
}

func newFakePostRepo() *fakePostRepo { return &fakePostRepo{} }

func (f *fakePostRepo) Upload(ctx context.Context, userID uuid.UUID, imageURL, caption string) (*models.Post, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	post := &models.Post{
		ID:        uuid.New(),
		UserID:    userID,
		ImageURL:  imageURL,
		Caption:   caption,
		CreatedAt: time.Now(),
	}
	f.mu.Lock()
	f.posts = append([]*models.Post{post}, f.posts...)
	f.mu.Unlock()
	return post, nil
}

func (f *fakePostRepo) Delete(ctx context.Context, userID, postID uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.posts[:0]
	for _, p := range f.posts {
		if p.ID != postID {
			out = append(out, p)
		}
	}
	f.posts = out
	return nil
}

func (f *fakePostRepo) GetUserPosts(ctx context.Context, userID uuid.UUID) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Post
	for _, p := range f.posts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePostRepo) GetFeed(ctx context.Context, selfID uuid.UUID) ([]*models.Post, error) {
	return f.feed, nil
}

// fakeMessageRepo keeps chats and messages in memory and publishes change
// events over a real in-process bus, so the listeners behave like the
// production ones.
type fakeMessageRepo struct {
	bus *events.MemoryBus

	mu       sync.Mutex
	chats    map[string]*models.Chat
	messages map[string][]*models.Message
	users    *fakeUserRepo
}

func newFakeMessageRepo(users *fakeUserRepo) *fakeMessageRepo {
	return &fakeMessageRepo{
		bus:      events.NewMemoryBus(),
		chats:    make(map[string]*models.Chat),
		messages: make(map[string][]*models.Message),
		users:    users,
	}
}

func (f *fakeMessageRepo) CreateChatIfNotExists(ctx context.Context, selfID, otherID uuid.UUID) (string, error) {
	chatID := repository.ChatID(selfID, otherID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.chats[chatID]; !ok {
		f.chats[chatID] = &models.Chat{ID: chatID, UserA: selfID, UserB: otherID, CreatedAt: time.Now()}
	}
	return chatID, nil
}

func (f *fakeMessageRepo) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

func (f *fakeMessageRepo) SendMessage(ctx context.Context, chatID string, senderID, receiverID uuid.UUID, body string) (*models.Message, error) {
	f.mu.Lock()
	chat, ok := f.chats[chatID]
	if !ok {
		f.mu.Unlock()
		return nil, apperr.ErrNotFound
	}
	msg := &models.Message{
		ID:         uuid.New(),
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		SentAt:     time.Now(),
	}
	f.messages[chatID] = append(f.messages[chatID], msg)
	chat.LastMessage = body
	chat.LastMessageTime = msg.SentAt
	participants := chat.Participants()
	f.mu.Unlock()

	data, err := events.Encode(&events.ChatChangedEvent{
		ChatID:       chatID,
		Participants: participants,
		OccurredAt:   msg.SentAt,
	})
	if err != nil {
		return nil, err
	}
	if err := f.bus.Publish(events.SubjectChatChanged(chatID), data); err != nil {
		return nil, err
	}
	return msg, nil
}

func (f *fakeMessageRepo) GetMessages(ctx context.Context, chatID string) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.Message(nil), f.messages[chatID]...), nil
}

func (f *fakeMessageRepo) GetInbox(ctx context.Context, selfID uuid.UUID) ([]*models.LastChat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.LastChat
	for _, chat := range f.chats {
		if chat.UserA != selfID && chat.UserB != selfID {
			continue
		}
		otherID := chat.OtherUser(selfID)
		entry := &models.LastChat{
			ChatID:          chat.ID,
			OtherUserID:     otherID,
			LastMessage:     chat.LastMessage,
			LastMessageTime: chat.LastMessageTime,
		}
		if f.users != nil {
			if other, err := f.users.GetByID(ctx, otherID); err == nil {
				entry.Handle = other.Handle
				entry.ProfileImage = other.ProfileImage
			}
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out, nil
}

func (f *fakeMessageRepo) ListenMessages(ctx context.Context, chatID string) (*realtime.Listener[[]*models.Message], error) {
	return realtime.Subscribe(ctx, f.bus, events.SubjectChatChanged(chatID), nil,
		func(ctx context.Context) ([]*models.Message, error) {
			return f.GetMessages(ctx, chatID)
		}, zap.NewNop())
}

func (f *fakeMessageRepo) ListenInbox(ctx context.Context, selfID uuid.UUID) (*realtime.Listener[[]*models.LastChat], error) {
	accept := func(subject string, data []byte) bool {
		var event events.ChatChangedEvent
		if err := events.Decode(data, &event); err != nil {
			return false
		}
		return event.Involves(selfID)
	}
	return realtime.Subscribe(ctx, f.bus, events.SubjectChatChangedAll, accept,
		func(ctx context.Context) ([]*models.LastChat, error) {
			return f.GetInbox(ctx, selfID)
		}, zap.NewNop())
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)
var _ repository.FollowRepository = (*fakeFollowRepo)(nil)
var _ repository.PostRepository = (*fakePostRepo)(nil)
var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func userFixture(handle string) *models.User {
	return &models.User{
		ID:       uuid.New(),
		Handle:   handle,
		Username: handle,
		Email:    fmt.Sprintf("%s@example.com", handle),
	}
}
