package draft

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/loopfeed/loopfeed/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxTags is the number of tags a loop may carry.
const MaxTags = 10

var (
	ErrIndexOutOfRange   = errors.New("card position out of range")
	ErrTooManyTags       = errors.New("a loop can have at most 10 tags")
	ErrEmptyTag          = errors.New("tag is empty")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrPublishInProgress = errors.New("a publish is already running for this draft")
)

var tagCaser = cases.Lower(language.Und)

// Style is the presentation of a loop.
type Style struct {
	Theme   string `json:"theme"`
	Font    string `json:"font"`
	BgColor string `json:"bg_color"`
	Music   string `json:"music"`
}

// Collaborator is a user who may co-edit the loop.
type Collaborator struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// State is the authored content of a draft.
type State struct {
	// LoopID is set when the draft edits an existing loop.
	LoopID string
	// OriginalLoopID is the loop a remix was made from.
	OriginalLoopID string
	IsRemix        bool

	Title         string
	Tagline       string
	Tags          []string
	Autoplay      bool
	Visibility    string
	Style         Style
	Cards         []model.Card
	Collaborators []Collaborator
}

// IsEdit reports whether the draft targets an existing loop.
func (s State) IsEdit() bool {
	return s.LoopID != ""
}

func (s State) clone() State {
	s.Tags = slices.Clone(s.Tags)
	s.Cards = slices.Clone(s.Cards)
	s.Collaborators = slices.Clone(s.Collaborators)
	return s
}

// Draft is the working copy of one authoring session. It belongs to a single
// user and is safe for concurrent use.
type Draft struct {
	mu         sync.Mutex
	id         string
	userID     string
	state      State
	changed    map[string]struct{}
	seq        int
	publishing bool
	touched    time.Time
}

// New returns an empty draft with public visibility.
func New(id, userID string) *Draft {
	d := &Draft{id: id, userID: userID}
	d.reset()
	return d
}

// Load returns a draft pre-filled with st. Cards receive fresh local ids.
func Load(id, userID string, st State) *Draft {
	d := New(id, userID)
	st = st.clone()
	if st.Visibility == "" {
		st.Visibility = model.VisibilityPublic
	}
	for i, c := range st.Cards {
		st.Cards[i] = d.withNextID(c)
	}
	if st.Tags == nil {
		st.Tags = []string{}
	}
	d.state = st
	return d
}

func (d *Draft) ID() string     { return d.id }
func (d *Draft) UserID() string { return d.userID }

// Touched returns when the draft was last modified or read.
func (d *Draft) Touched() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.touched
}

// Snapshot returns a copy of the current state.
func (d *Draft) Snapshot() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.touched = time.Now()
	return d.state.clone()
}

func (d *Draft) update(fn func(st *State) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := fn(&d.state)
	if err != nil {
		return err
	}
	d.touched = time.Now()
	return nil
}

func (d *Draft) SetTitle(title string) {
	_ = d.update(func(st *State) error { st.Title = title; return nil })
}

func (d *Draft) SetTagline(tagline string) {
	_ = d.update(func(st *State) error { st.Tagline = tagline; return nil })
}

func (d *Draft) SetAutoplay(on bool) {
	_ = d.update(func(st *State) error { st.Autoplay = on; return nil })
}

func (d *Draft) SetVisibility(v string) error {
	if !model.ValidVisibility(v) {
		return fmt.Errorf("%w: %q", ErrInvalidVisibility, v)
	}
	return d.update(func(st *State) error { st.Visibility = v; return nil })
}

func (d *Draft) SetStyle(s Style) {
	_ = d.update(func(st *State) error { st.Style = s; return nil })
}

// NormalizeTag trims and lowercases a tag.
func NormalizeTag(tag string) string {
	return tagCaser.String(strings.TrimSpace(tag))
}

// AddTag adds a lowercased tag. Adding a tag that is already present is a no-op.
func (d *Draft) AddTag(tag string) error {
	tag = NormalizeTag(tag)
	if tag == "" {
		return ErrEmptyTag
	}
	return d.update(func(st *State) error {
		if slices.Contains(st.Tags, tag) {
			return nil
		}
		if len(st.Tags) >= MaxTags {
			return ErrTooManyTags
		}
		st.Tags = append(st.Tags, tag)
		return nil
	})
}

func (d *Draft) RemoveTag(tag string) {
	tag = NormalizeTag(tag)
	_ = d.update(func(st *State) error {
		st.Tags = slices.DeleteFunc(st.Tags, func(t string) bool { return t == tag })
		return nil
	})
}

// SetCollaborators replaces the collaborator list, dropping duplicates and the owner.
func (d *Draft) SetCollaborators(cs []Collaborator) {
	_ = d.update(func(st *State) error {
		st.Collaborators = nil
		for _, c := range cs {
			d.addCollaborator(st, c)
		}
		return nil
	})
}

func (d *Draft) AddCollaborator(c Collaborator) {
	_ = d.update(func(st *State) error {
		d.addCollaborator(st, c)
		return nil
	})
}

func (d *Draft) addCollaborator(st *State, c Collaborator) {
	if c.UserID == "" || c.UserID == d.userID {
		return
	}
	for _, existing := range st.Collaborators {
		if existing.UserID == c.UserID {
			return
		}
	}
	st.Collaborators = append(st.Collaborators, c)
}

func (d *Draft) RemoveCollaborator(userID string) {
	_ = d.update(func(st *State) error {
		st.Collaborators = slices.DeleteFunc(st.Collaborators, func(c Collaborator) bool { return c.UserID == userID })
		return nil
	})
}

func (d *Draft) withNextID(c model.Card) model.Card {
	d.seq++
	return model.WithLocalID(c, fmt.Sprintf("c%d", d.seq))
}

// Len returns the number of cards.
func (d *Draft) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.state.Cards)
}

// Card returns the card at pos.
func (d *Draft) Card(pos int) (model.Card, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pos < 0 || pos >= len(d.state.Cards) {
		return nil, ErrIndexOutOfRange
	}
	return d.state.Cards[pos], nil
}

// AppendCard adds c at the end and returns it with its local id.
func (d *Draft) AppendCard(c model.Card) model.Card {
	var added model.Card
	_ = d.update(func(st *State) error {
		added = d.withNextID(c)
		st.Cards = append(st.Cards, added)
		return nil
	})
	return added
}

// ReplaceCard puts c at pos, keeping the local id of the card it replaces.
// It returns the replaced card.
func (d *Draft) ReplaceCard(pos int, c model.Card) (old, replaced model.Card, err error) {
	err = d.update(func(st *State) error {
		if pos < 0 || pos >= len(st.Cards) {
			return ErrIndexOutOfRange
		}
		old = st.Cards[pos]
		replaced = model.WithLocalID(c, old.CardID())
		st.Cards[pos] = replaced
		return nil
	})
	return old, replaced, err
}

// RemoveCard deletes the card at pos and returns it.
func (d *Draft) RemoveCard(pos int) (model.Card, error) {
	var removed model.Card
	err := d.update(func(st *State) error {
		if pos < 0 || pos >= len(st.Cards) {
			return ErrIndexOutOfRange
		}
		removed = st.Cards[pos]
		st.Cards = slices.Delete(st.Cards, pos, pos+1)
		delete(d.changed, removed.CardID())
		return nil
	})
	return removed, err
}

// MoveCard moves the card at from so that it ends up at to.
func (d *Draft) MoveCard(from, to int) error {
	return d.update(func(st *State) error {
		n := len(st.Cards)
		if from < 0 || from >= n || to < 0 || to >= n {
			return ErrIndexOutOfRange
		}
		c := st.Cards[from]
		st.Cards = slices.Delete(st.Cards, from, from+1)
		st.Cards = slices.Insert(st.Cards, to, c)
		return nil
	})
}

func (d *Draft) MarkChanged(localID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changed[localID] = struct{}{}
}

func (d *Draft) IsChanged(localID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.changed[localID]
	return ok
}

// Changed returns the local ids of changed cards in card order.
func (d *Draft) Changed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := []string{}
	for _, c := range d.state.Cards {
		if _, ok := d.changed[c.CardID()]; ok {
			ids = append(ids, c.CardID())
		}
	}
	return ids
}

// Reset clears the draft and returns the cards it held.
func (d *Draft) Reset() []model.Card {
	d.mu.Lock()
	defer d.mu.Unlock()
	cards := d.state.Cards
	d.reset()
	return cards
}

func (d *Draft) reset() {
	d.state = State{
		Tags:       []string{},
		Visibility: model.VisibilityPublic,
	}
	d.changed = map[string]struct{}{}
	d.touched = time.Now()
}

// BeginPublish marks the draft as publishing. It fails while another publish runs.
func (d *Draft) BeginPublish() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.publishing {
		return ErrPublishInProgress
	}
	d.publishing = true
	return nil
}

func (d *Draft) EndPublish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishing = false
	d.touched = time.Now()
}

// Publishing reports whether a publish is running.
func (d *Draft) Publishing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publishing
}
