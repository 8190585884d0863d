// Package state is the terminal client's session state: who is logged in
// and their projects.
//
// All changes go through Reduce, a pure function from (State, Action) to the
// next State. Store wraps it with a mutex and change notifications so the
// REPL can redraw its prompt whenever the user changes.
package state

import (
	"slices"
	"sync"
)

// User is the logged-in user as the client sees it. ID 0 means logged out.
type User struct {
	ID         int64  `json:"id"`
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	Username   string `json:"username"`
	PictureImg string `json:"pictureImg"`
}

// Project is a user's project. No command creates one yet; the list is
// carried so every action keeps it intact.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type State struct {
	User     User      `json:"user"`
	Projects []Project `json:"projects"`
}

// Default is the logged-out state.
func Default() State {
	return State{Projects: []Project{}}
}

// LoggedIn reports whether a user is set.
func (s State) LoggedIn() bool {
	return s.User.ID != 0
}

type Kind string

const (
	Login  Kind = "LOGIN"
	Update Kind = "UPDATE"
)

// Action is a state transition request. Both kinds carry the complete
// replacement user.
type Action struct {
	Kind Kind
	User User
}

// Reduce returns the state after a. Login and Update replace the user and
// keep the projects; any other kind returns s unchanged.
func Reduce(s State, a Action) State {
	switch a.Kind {
	case Login, Update:
		return State{User: a.User, Projects: s.Projects}
	default:
		return s
	}
}

// Store holds the current State.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

// Dispatch reduces a into the current state and notifies subscribers when
// the state changed. It returns the new state.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	prev := s.state
	s.state = Reduce(prev, a)
	next := s.state
	subs := s.subscribersLocked()
	s.mu.Unlock()

	if !equal(prev, next) {
		notify(subs, next)
	}
	return clone(next)
}

// Reset replaces the state with Default, as on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	s.state = Default()
	next := s.state
	subs := s.subscribersLocked()
	s.mu.Unlock()

	notify(subs, next)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.state)
}

func (s *Store) LoggedIn() bool {
	return s.State().LoggedIn()
}

// Subscribe registers fn to run after every change. Callbacks run outside
// the lock, so they may call back into the store. The returned func
// unsubscribes.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(clone(st))
	}
}

func clone(st State) State {
	st.Projects = slices.Clone(st.Projects)
	return st
}

func equal(a, b State) bool {
	return a.User == b.User && slices.Equal(a.Projects, b.Projects)
}
