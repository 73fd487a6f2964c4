package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"wayfarer/models"
	"wayfarer/presence"
	"wayfarer/push"
)

var errDuplicate = mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}

type fakeUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) add(name string) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: primitive.NewObjectID(), Name: name, Username: name, Role: models.RoleUser}
	f.users[u.ID] = u
	return u.ID
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

type fakeGraph struct {
	mu          sync.Mutex
	connections []models.Connection
	follows     []models.Follower
	blocks      []models.BlockedUser
}

func (f *fakeGraph) connect(a, b primitive.ObjectID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections = append(f.connections, models.Connection{ID: primitive.NewObjectID(), Requester: a, Recipient: b, Status: status})
}

func (f *fakeGraph) follow(a, b primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows = append(f.follows, models.Follower{ID: primitive.NewObjectID(), Follower: a, Following: b})
}

func (f *fakeGraph) block(a, b primitive.ObjectID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, models.BlockedUser{ID: primitive.NewObjectID(), Blocker: a, Blocked: b})
}

func pair(c models.Connection, a, b primitive.ObjectID) bool {
	return (c.Requester == a && c.Recipient == b) || (c.Requester == b && c.Recipient == a)
}

func (f *fakeGraph) AcceptedConnections(_ context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, c := range f.connections {
		if c.Status == models.ConnectionAccepted && (c.Requester == user || c.Recipient == user) {
			out = append(out, c.Other(user))
		}
	}
	return out, nil
}

func (f *fakeGraph) Following(_ context.Context, user primitive.ObjectID) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, fl := range f.follows {
		if fl.Follower == user {
			out = append(out, fl.Following)
		}
	}
	return out, nil
}

func (f *fakeGraph) BlockedBy(_ context.Context, blocker primitive.ObjectID) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, b := range f.blocks {
		if b.Blocker == blocker {
			out = append(out, b.Blocked)
		}
	}
	return out, nil
}

func (f *fakeGraph) IsBlocked(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, bl := range f.blocks {
		if (bl.Blocker == a && bl.Blocked == b) || (bl.Blocker == b && bl.Blocked == a) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGraph) AreConnected(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.connections {
		if c.Status == models.ConnectionAccepted && pair(c, a, b) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGraph) FollowsEither(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fl := range f.follows {
		if (fl.Follower == a && fl.Following == b) || (fl.Follower == b && fl.Following == a) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGraph) FindConnection(_ context.Context, a, b primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.connections {
		if pair(c, a, b) {
			cp := c
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeGraph) FindConnectionByID(_ context.Context, id primitive.ObjectID) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.connections {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeGraph) ListConnections(_ context.Context, user primitive.ObjectID, status string) ([]models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Connection
	for _, c := range f.connections {
		if c.Status != status {
			continue
		}
		if c.Recipient == user || (status == models.ConnectionAccepted && c.Requester == user) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeGraph) CreateConnection(_ context.Context, c *models.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.connections {
		if existing.Requester == c.Requester && existing.Recipient == c.Recipient {
			return errDuplicate
		}
	}
	c.ID = primitive.NewObjectID()
	f.connections = append(f.connections, *c)
	return nil
}

func (f *fakeGraph) AcceptConnection(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.connections {
		if f.connections[i].ID == id {
			f.connections[i].Status = models.ConnectionAccepted
			f.connections[i].UpdatedAt = at
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (f *fakeGraph) DeleteConnection(_ context.Context, a, b primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.connections[:0]
	removed := false
	for _, c := range f.connections {
		if pair(c, a, b) {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	f.connections = kept
	return removed, nil
}

func (f *fakeGraph) Follow(_ context.Context, fl *models.Follower) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.follows {
		if existing.Follower == fl.Follower && existing.Following == fl.Following {
			return errDuplicate
		}
	}
	fl.ID = primitive.NewObjectID()
	f.follows = append(f.follows, *fl)
	return nil
}

func (f *fakeGraph) Unfollow(_ context.Context, follower, following primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.follows[:0]
	removed := false
	for _, fl := range f.follows {
		if fl.Follower == follower && fl.Following == following {
			removed = true
			continue
		}
		kept = append(kept, fl)
	}
	f.follows = kept
	return removed, nil
}

func (f *fakeGraph) Block(_ context.Context, b *models.BlockedUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.blocks {
		if existing.Blocker == b.Blocker && existing.Blocked == b.Blocked {
			return errDuplicate
		}
	}
	b.ID = primitive.NewObjectID()
	f.blocks = append(f.blocks, *b)
	return nil
}

func (f *fakeGraph) Unblock(_ context.Context, blocker, blocked primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.blocks[:0]
	removed := false
	for _, b := range f.blocks {
		if b.Blocker == blocker && b.Blocked == blocked {
			removed = true
			continue
		}
		kept = append(kept, b)
	}
	f.blocks = kept
	return removed, nil
}

type fakePosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*models.Post
	media map[primitive.ObjectID]models.Media
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: map[primitive.ObjectID]*models.Post{}, media: map[primitive.ObjectID]models.Media{}}
}

func (f *fakePosts) seed(p models.Post) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.Type == "" {
		p.Type = models.PostTypeUser
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	f.posts[p.ID] = &p
	return p.ID
}

func (f *fakePosts) seedMedia(owner primitive.ObjectID, typ string) primitive.ObjectID {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := models.Media{ID: primitive.NewObjectID(), Owner: owner, Type: typ, URL: "https://cdn/" + typ}
	exp := time.Now().Add(time.Hour)
	m.ExpiresAt = &exp
	f.media[m.ID] = m
	return m.ID
}

func (f *fakePosts) view(p *models.Post) models.PostView {
	v := models.PostView{Post: *p, MediaItems: []models.Media{}}
	for _, id := range p.Media {
		if m, ok := f.media[id]; ok {
			v.MediaItems = append(v.MediaItems, m)
		}
	}
	return v
}

func (f *fakePosts) Insert(_ context.Context, p *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = primitive.NewObjectID()
	cp := *p
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakePosts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *p
	return &cp, nil
}

func (f *fakePosts) FindView(_ context.Context, id primitive.ObjectID) (*models.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	v := f.view(p)
	return &v, nil
}

func (f *fakePosts) FindFeed(_ context.Context, c FeedCriteria, skip, limit int64) ([]models.PostView, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*models.Post
	for _, p := range f.posts {
		if c.Matches(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := int64(len(matched))
	var out []models.PostView
	for i := skip; i < total && i < skip+limit; i++ {
		out = append(out, f.view(matched[i]))
	}
	return out, total, nil
}

// putReaction and pullReaction mirror the guarded array writes of the
// Mongo store: only r.User's entry changes.
func putReaction(reactions []models.Reaction, r models.Reaction) []models.Reaction {
	out := make([]models.Reaction, 0, len(reactions)+1)
	for _, x := range reactions {
		if x.User == r.User {
			continue
		}
		out = append(out, x)
	}
	return append(out, r)
}

func pullReaction(reactions []models.Reaction, user primitive.ObjectID, typ string) []models.Reaction {
	out := make([]models.Reaction, 0, len(reactions))
	for _, x := range reactions {
		if x.User == user && x.Type == typ {
			continue
		}
		out = append(out, x)
	}
	return out
}

func (f *fakePosts) SetReaction(_ context.Context, id primitive.ObjectID, r models.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id].Reactions = putReaction(f.posts[id].Reactions, r)
	return nil
}

func (f *fakePosts) RemoveReaction(_ context.Context, id, user primitive.ObjectID, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id].Reactions = pullReaction(f.posts[id].Reactions, user, typ)
	return nil
}

func (f *fakePosts) AddComment(_ context.Context, id primitive.ObjectID, c models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id].Comments = append(f.posts[id].Comments, c)
	return nil
}

func (f *fakePosts) SetCommentReaction(_ context.Context, postID, commentID primitive.ObjectID, r models.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.posts[postID].FindComment(commentID); c != nil {
		c.Reactions = putReaction(c.Reactions, r)
	}
	return nil
}

func (f *fakePosts) RemoveCommentReaction(_ context.Context, postID, commentID, user primitive.ObjectID, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c := f.posts[postID].FindComment(commentID); c != nil {
		c.Reactions = pullReaction(c.Reactions, user, typ)
	}
	return nil
}

func (f *fakePosts) IncShareCount(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id].ShareCount++
	return nil
}

func (f *fakePosts) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[id].IsDeleted = true
	return nil
}

// fakeMedia shares the media map of fakePosts so feed views can resolve it.
type fakeMedia struct {
	posts *fakePosts
}

func (f *fakeMedia) Insert(_ context.Context, m *models.Media) error {
	f.posts.mu.Lock()
	defer f.posts.mu.Unlock()
	m.ID = primitive.NewObjectID()
	f.posts.media[m.ID] = *m
	return nil
}

func (f *fakeMedia) FindOwned(_ context.Context, owner primitive.ObjectID, ids []primitive.ObjectID) ([]models.Media, error) {
	f.posts.mu.Lock()
	defer f.posts.mu.Unlock()
	var out []models.Media
	for _, id := range ids {
		if m, ok := f.posts.media[id]; ok && m.Owner == owner {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMedia) Attach(_ context.Context, ids []primitive.ObjectID) error {
	f.posts.mu.Lock()
	defer f.posts.mu.Unlock()
	for _, id := range ids {
		m := f.posts.media[id]
		m.ExpiresAt = nil
		f.posts.media[id] = m
	}
	return nil
}

type fakeChats struct {
	mu      sync.Mutex
	chats   map[primitive.ObjectID]*models.Chat
	inserts int
}

func newFakeChats() *fakeChats { return &fakeChats{chats: map[primitive.ObjectID]*models.Chat{}} }

func (f *fakeChats) FindByID(_ context.Context, id primitive.ObjectID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chats[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *c
	cp.Participants = append([]primitive.ObjectID(nil), c.Participants...)
	return &cp, nil
}

func (f *fakeChats) FindDirect(_ context.Context, a, b primitive.ObjectID) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := models.DirectKey(a, b)
	for _, c := range f.chats {
		if c.DirectKey == key && !c.IsDeleted {
			cp := *c
			return &cp, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeChats) ListForUser(_ context.Context, user primitive.ObjectID, skip, limit int64) ([]models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Chat
	for _, c := range f.chats {
		if !c.IsDeleted && c.HasParticipant(user) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChats) Insert(_ context.Context, c *models.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.DirectKey != "" {
		for _, existing := range f.chats {
			if existing.DirectKey == c.DirectKey {
				return errDuplicate
			}
		}
	}
	c.ID = primitive.NewObjectID()
	cp := *c
	f.chats[c.ID] = &cp
	f.inserts++
	return nil
}

func (f *fakeChats) SetLastMessage(_ context.Context, chatID, messageID primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chats[chatID]
	c.LastMessage = &messageID
	c.LastMessageAt = &at
	return nil
}

func (f *fakeChats) AddParticipants(_ context.Context, chatID primitive.ObjectID, ids []primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chatID].Participants = append(f.chats[chatID].Participants, ids...)
	return nil
}

func (f *fakeChats) RemoveParticipant(_ context.Context, chatID, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.chats[chatID]
	c.Participants = c.Others(user)
	return nil
}

func (f *fakeChats) SoftDelete(_ context.Context, chatID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chats[chatID].IsDeleted = true
	f.chats[chatID].DirectKey = ""
	return nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []*models.Message
}

func (f *fakeMessages) find(id primitive.ObjectID) *models.Message {
	for _, m := range f.msgs {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (f *fakeMessages) Insert(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	cp := *m
	f.msgs = append(f.msgs, &cp)
	return nil
}

func (f *fakeMessages) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return nil, mongo.ErrNoDocuments
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) ListByChat(_ context.Context, chatID, viewer primitive.ObjectID, skip, limit int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		hidden := false
		for _, u := range m.DeletedFor {
			hidden = hidden || u == viewer
		}
		if m.Chat == chatID && !hidden {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessages) MarkSeen(_ context.Context, id, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if !m.SeenByUser(user) {
		m.SeenBy = append(m.SeenBy, user)
	}
	return nil
}

func (f *fakeMessages) MarkChatSeen(_ context.Context, chatID, reader primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.msgs {
		if m.Chat == chatID && m.Sender != reader && !m.SeenByUser(reader) {
			m.SeenBy = append(m.SeenBy, reader)
			n++
		}
	}
	return n, nil
}

func (f *fakeMessages) DeleteFor(_ context.Context, id, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	m.DeletedFor = append(m.DeletedFor, user)
	return nil
}

func (f *fakeMessages) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.find(id).IsDeleted = true
	return nil
}

type fakeNotifications struct {
	mu   sync.Mutex
	rows []*models.Notification
}

func (f *fakeNotifications) in(scope NotificationScope, n *models.Notification) bool {
	if scope.Admin {
		return n.Role == models.RoleAdmin
	}
	return n.Receiver != nil && *n.Receiver == scope.Receiver
}

func (f *fakeNotifications) Insert(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.Type == models.NotifyMessage {
		for _, r := range f.rows {
			if r.Type == models.NotifyMessage && !r.Viewed && *r.Receiver == *n.Receiver && *r.Sender == *n.Sender {
				return errDuplicate
			}
		}
	}
	n.ID = primitive.NewObjectID()
	cp := *n
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeNotifications) List(_ context.Context, scope NotificationScope, skip, limit int64) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for _, r := range f.rows {
		if f.in(scope, r) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, scope NotificationScope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if f.in(scope, r) && !r.Viewed {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) MarkViewed(_ context.Context, scope NotificationScope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if f.in(scope, r) && !r.Viewed {
			r.Viewed = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotifications) ViewFrom(_ context.Context, receiver, sender primitive.ObjectID, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.Type == typ && r.Receiver != nil && *r.Receiver == receiver && r.Sender != nil && *r.Sender == sender {
			r.Viewed = true
		}
	}
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, scope NotificationScope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	var n int64
	for _, r := range f.rows {
		if f.in(scope, r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeNotifications) forReceiver(user primitive.ObjectID) []models.Notification {
	out, _ := f.List(context.Background(), NotificationScope{Receiver: user}, 0, 100)
	return out
}

type fakeTx struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return fn(ctx)
}

type published struct {
	Room    string
	Event   string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(_ context.Context, room, event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{Room: room, Event: event, Payload: payload})
	return nil
}

func (f *fakePublisher) to(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		if e.Room == room {
			out = append(out, e.Event)
		}
	}
	return out
}

type fakePresence struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]presence.Status
}

func newFakePresence() *fakePresence {
	return &fakePresence{users: map[primitive.ObjectID]presence.Status{}}
}

func (f *fakePresence) set(user primitive.ObjectID, online, inBox bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user] = presence.Status{Online: online, InMessageBox: inBox}
}

func (f *fakePresence) Status(_ context.Context, user primitive.ObjectID) (presence.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[user], nil
}

type fakePusher struct {
	sent chan primitive.ObjectID
}

func newFakePusher() *fakePusher { return &fakePusher{sent: make(chan primitive.ObjectID, 16)} }

func (f *fakePusher) Send(_ context.Context, user primitive.ObjectID, _ push.Payload) error {
	f.sent <- user
	return nil
}

type fakeStories struct {
	mu      sync.Mutex
	stories map[primitive.ObjectID]*models.Story
	media   []*models.StoryMedia
}

func newFakeStories() *fakeStories {
	return &fakeStories{stories: map[primitive.ObjectID]*models.Story{}}
}

func (f *fakeStories) InsertStory(_ context.Context, s *models.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = primitive.NewObjectID()
	cp := *s
	f.stories[s.ID] = &cp
	return nil
}

func (f *fakeStories) FindLatestByOwner(_ context.Context, owner primitive.ObjectID, now time.Time) (*models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.Story
	for _, s := range f.stories {
		if s.Owner == owner && s.ExpiresAt.After(now) && (latest == nil || s.CreatedAt.After(latest.CreatedAt)) {
			latest = s
		}
	}
	if latest == nil {
		return nil, mongo.ErrNoDocuments
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStories) FindStory(_ context.Context, id primitive.ObjectID, now time.Time) (*models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[id]
	if !ok || !s.ExpiresAt.After(now) {
		return nil, mongo.ErrNoDocuments
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStories) LiveStoriesByOwners(_ context.Context, owners []primitive.ObjectID, now time.Time) ([]models.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Story
	for _, s := range f.stories {
		if idIn(owners, s.Owner) && s.ExpiresAt.After(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStories) SetStoryExpiry(_ context.Context, id primitive.ObjectID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories[id].ExpiresAt = at
	return nil
}

func (f *fakeStories) DeleteStory(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stories, id)
	return nil
}

func (f *fakeStories) InsertMedia(_ context.Context, media []models.StoryMedia) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range media {
		if media[i].ID.IsZero() {
			media[i].ID = primitive.NewObjectID()
		}
		cp := media[i]
		f.media = append(f.media, &cp)
	}
	return nil
}

func (f *fakeStories) LiveMedia(_ context.Context, storyIDs []primitive.ObjectID, now time.Time) ([]models.StoryMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StoryMedia
	for _, m := range f.media {
		if idIn(storyIDs, m.Story) && m.Live(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStories) findMedia(id primitive.ObjectID) *models.StoryMedia {
	for _, m := range f.media {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (f *fakeStories) FindMedia(_ context.Context, id primitive.ObjectID, now time.Time) (*models.StoryMedia, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findMedia(id)
	if m == nil || !m.Live(now) {
		return nil, mongo.ErrNoDocuments
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStories) AddViewer(_ context.Context, mediaID primitive.ObjectID, v models.StoryViewer) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findMedia(mediaID)
	if m.ViewedBy(v.User) {
		return false, nil
	}
	m.Viewers = append(m.Viewers, v)
	return true, nil
}

func (f *fakeStories) SetMediaReaction(_ context.Context, mediaID primitive.ObjectID, r models.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findMedia(mediaID)
	m.Reactions = putReaction(m.Reactions, r)
	return nil
}

func (f *fakeStories) RemoveMediaReaction(_ context.Context, mediaID, user primitive.ObjectID, typ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.findMedia(mediaID)
	m.Reactions = pullReaction(m.Reactions, user, typ)
	return nil
}

func (f *fakeStories) DeleteMedia(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.media[:0]
	for _, m := range f.media {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	f.media = kept
	return nil
}

type fakeInvites struct {
	mu      sync.Mutex
	groups  map[primitive.ObjectID]*models.Group
	events  map[primitive.ObjectID]*models.Event
	invites map[primitive.ObjectID]*models.Invite
}

func newFakeInvites() *fakeInvites {
	return &fakeInvites{
		groups:  map[primitive.ObjectID]*models.Group{},
		events:  map[primitive.ObjectID]*models.Event{},
		invites: map[primitive.ObjectID]*models.Invite{},
	}
}

func (f *fakeInvites) InsertGroup(_ context.Context, g *models.Group) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.ID = primitive.NewObjectID()
	cp := *g
	f.groups[g.ID] = &cp
	return nil
}

func (f *fakeInvites) FindGroup(_ context.Context, id primitive.ObjectID) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *g
	return &cp, nil
}

func (f *fakeInvites) InsertEvent(_ context.Context, e *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = primitive.NewObjectID()
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeInvites) FindEvent(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *e
	return &cp, nil
}

func (f *fakeInvites) InsertInvite(_ context.Context, inv *models.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.invites {
		if existing.Status == models.InvitePending && existing.Target == inv.Target && existing.Invitee == inv.Invitee {
			return errDuplicate
		}
	}
	inv.ID = primitive.NewObjectID()
	cp := *inv
	f.invites[inv.ID] = &cp
	return nil
}

func (f *fakeInvites) FindInvite(_ context.Context, id primitive.ObjectID) (*models.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invites[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvites) ListPending(_ context.Context, invitee primitive.ObjectID) ([]models.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Invite
	for _, inv := range f.invites {
		if inv.Invitee == invitee && inv.Status == models.InvitePending {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInvites) SetInviteStatus(_ context.Context, id primitive.ObjectID, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invites[id]
	if !ok || inv.Status != models.InvitePending {
		return mongo.ErrNoDocuments
	}
	inv.Status = status
	inv.UpdatedAt = at
	return nil
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	var out []primitive.ObjectID
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeInvites) AddPending(_ context.Context, kind string, target, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == models.InviteGroup {
		f.groups[target].PendingInvites = append(f.groups[target].PendingInvites, user)
		return nil
	}
	f.events[target].PendingInvites = append(f.events[target].PendingInvites, user)
	return nil
}

func (f *fakeInvites) AddMember(_ context.Context, kind string, target, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == models.InviteGroup {
		g := f.groups[target]
		g.PendingInvites = without(g.PendingInvites, user)
		g.Members = append(g.Members, user)
		return nil
	}
	e := f.events[target]
	e.PendingInvites = without(e.PendingInvites, user)
	e.Attendees = append(e.Attendees, user)
	return nil
}

func (f *fakeInvites) RemovePending(_ context.Context, kind string, target, user primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if kind == models.InviteGroup {
		f.groups[target].PendingInvites = without(f.groups[target].PendingInvites, user)
		return nil
	}
	f.events[target].PendingInvites = without(f.events[target].PendingInvites, user)
	return nil
}
