// Package memory holds the in-memory store used in development mode and in
// tests. It mirrors the Postgres store's behavior, including the
// one-edge-per-unordered-pair invariant.
package memory

import (
	"context"
	"sort"
	"sync"

	"ping/domain/friendship"
	"ping/domain/notification"
	"ping/domain/post"
	"ping/domain/user"
	"ping/pkg/errors"
)

// Store implements every port over process-local maps.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*user.User            // username -> user
	edges         map[string]*friendship.Edge      // edge id -> edge
	pairs         map[[2]string]string             // canonical pair -> edge id
	notifications map[string]*notification.Notification
	posts         map[string]*post.Post
	comments      map[string]*post.Comment
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*user.User),
		edges:         make(map[string]*friendship.Edge),
		pairs:         make(map[[2]string]string),
		notifications: make(map[string]*notification.Notification),
		posts:         make(map[string]*post.Post),
		comments:      make(map[string]*post.Comment),
	}
}

// CreateUser stores a new user.
func (s *Store) CreateUser(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Username]; exists {
		return errors.NewConflict("username already taken")
	}
	copied := *u
	s.users[u.Username] = &copied
	return nil
}

// UserByUsername looks up a user.
func (s *Store) UserByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return nil, errors.NewNotFound("user not found")
	}
	copied := *u
	return &copied, nil
}

// ListUsers returns all users sorted by username.
func (s *Store) ListUsers(ctx context.Context) ([]*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*user.User, 0, len(s.users))
	for _, u := range s.users {
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func pairOf(e *friendship.Edge) [2]string {
	a, b := friendship.PairKey(e.Sender, e.Receiver)
	return [2]string{a, b}
}

// CreateEdge stores a new friendship edge, enforcing the unordered-pair
// uniqueness invariant.
func (s *Store) CreateEdge(ctx context.Context, e *friendship.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair := pairOf(e)
	if _, exists := s.pairs[pair]; exists {
		return errors.NewConflict("friendship already exists")
	}
	copied := *e
	s.edges[e.ID] = &copied
	s.pairs[pair] = e.ID
	return nil
}

// EdgeByID looks up an edge.
func (s *Store) EdgeByID(ctx context.Context, id string) (*friendship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	if !ok {
		return nil, errors.NewNotFound("friendship not found")
	}
	copied := *e
	return &copied, nil
}

// UpdateEdge replaces a stored edge.
func (s *Store) UpdateEdge(ctx context.Context, e *friendship.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[e.ID]; !ok {
		return errors.NewNotFound("friendship not found")
	}
	copied := *e
	s.edges[e.ID] = &copied
	return nil
}

// DeleteEdge removes an edge.
func (s *Store) DeleteEdge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return errors.NewNotFound("friendship not found")
	}
	delete(s.pairs, pairOf(e))
	delete(s.edges, id)
	return nil
}

// AcceptedEdgesOf returns the accepted edges touching a user, queried
// symmetrically.
func (s *Store) AcceptedEdgesOf(ctx context.Context, username string) ([]*friendship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*friendship.Edge
	for _, e := range s.edges {
		if e.State != friendship.StateAccepted {
			continue
		}
		if e.Sender == username || e.Receiver == username {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// PendingEdgesFor returns requests awaiting the user's response.
func (s *Store) PendingEdgesFor(ctx context.Context, username string) ([]*friendship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*friendship.Edge
	for _, e := range s.edges {
		if e.State == friendship.StatePending && e.Receiver == username {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// EdgeBetween returns the edge between two users regardless of direction.
func (s *Store) EdgeBetween(ctx context.Context, a, b string) (*friendship.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	x, y := friendship.PairKey(a, b)
	id, ok := s.pairs[[2]string{x, y}]
	if !ok {
		return nil, errors.NewNotFound("friendship not found")
	}
	copied := *s.edges[id]
	return &copied, nil
}

// SuggestionsFor returns usernames with no edge to the user, up to limit.
func (s *Store) SuggestionsFor(ctx context.Context, username string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for name := range s.users {
		if name == username {
			continue
		}
		a, b := friendship.PairKey(username, name)
		if _, ok := s.pairs[[2]string{a, b}]; ok {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateNotification persists a new unread notification. The owner must be
// a known user, mirroring the relational foreign key.
func (s *Store) CreateNotification(ctx context.Context, owner, text string) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[owner]; !ok {
		return nil, errors.NewNotFound("user not found")
	}
	n, err := notification.New(owner, text)
	if err != nil {
		return nil, err
	}
	s.notifications[n.ID] = n
	copied := *n
	return &copied, nil
}

// NotificationByID looks up a notification.
func (s *Store) NotificationByID(ctx context.Context, id string) (*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, errors.NewNotFound("notification not found")
	}
	copied := *n
	return &copied, nil
}

// NotificationsOf returns all notifications owned by a user.
func (s *Store) NotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error) {
	return s.listNotifications(owner, false)
}

// UnreadNotificationsOf returns the unread notifications owned by a user.
func (s *Store) UnreadNotificationsOf(ctx context.Context, owner string) ([]*notification.Notification, error) {
	return s.listNotifications(owner, true)
}

func (s *Store) listNotifications(owner string, unreadOnly bool) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*notification.Notification
	for _, n := range s.notifications {
		if n.Owner != owner {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		copied := *n
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkNotificationRead flips a notification to read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) (*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, errors.NewNotFound("notification not found")
	}
	n.MarkRead()
	copied := *n
	return &copied, nil
}

// DeleteNotification removes a notification.
func (s *Store) DeleteNotification(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[id]; !ok {
		return errors.NewNotFound("notification not found")
	}
	delete(s.notifications, id)
	return nil
}

// CreatePost stores a post.
func (s *Store) CreatePost(ctx context.Context, p *post.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.posts[p.ID] = &copied
	return nil
}

// PostByID looks up a post.
func (s *Store) PostByID(ctx context.Context, id string) (*post.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, errors.NewNotFound("post not found")
	}
	copied := *p
	return &copied, nil
}

// CreateComment stores a comment.
func (s *Store) CreateComment(ctx context.Context, c *post.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[c.PostID]; !ok {
		return errors.NewNotFound("post not found")
	}
	copied := *c
	s.comments[c.ID] = &copied
	return nil
}
