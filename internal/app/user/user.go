/*
Package user contains participant identity: durable user IDs and their display names.

A Resolver maps the identifier a client presents on every connection to a display name,
minting a fresh identifier for first-time visitors. Profiles live for the process lifetime.
*/
package user

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"planpoker/internal/pkg/randx"
)

// MaxDisplayNameLength bounds display names, in characters.
const MaxDisplayNameLength = 40

// Profile binds a durable user ID to the name shown to other participants.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// ProfileStore persists profiles.
type ProfileStore interface {
	Get(userID string) (Profile, bool)
	Put(p Profile)
}

// MemoryProfileStore is a process-local ProfileStore.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryProfileStore creates an empty MemoryProfileStore.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]Profile)}
}

func (s *MemoryProfileStore) Get(userID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	return p, ok
}

func (s *MemoryProfileStore) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[p.UserID] = p
}

// Resolution is the outcome of resolving a connecting participant.
type Resolution struct {
	UserID      string
	DisplayName string

	// NeedsName is set when no name was supplied and none is on record; the caller must
	// ask the client for one before joining a game.
	NeedsName bool

	// Minted is set when UserID was generated for this request.
	Minted bool

	// Renamed is set when a stored name was replaced.
	Renamed bool
}

// Resolver establishes or restores participant identity.
type Resolver struct {
	store ProfileStore
	mint  func() string
}

// NewResolver creates a Resolver backed by store. A nil mint uses randx.UserID.
func NewResolver(store ProfileStore, mint func() string) *Resolver {
	if mint == nil {
		mint = randx.UserID
	}
	return &Resolver{store: store, mint: mint}
}

// Resolve maps an optional client-supplied user ID and display name to an identity.
//
// Invalid or absent IDs are replaced with a fresh one. A supplied name is stored, so a
// returning participant can rename themselves by rejoining; otherwise the stored name is
// used. Having no name at all is reported through NeedsName, not as an error.
func (r *Resolver) Resolve(userID, displayName string) Resolution {
	res := Resolution{UserID: strings.TrimSpace(userID)}

	if !randx.IsValidUserID(res.UserID) {
		res.UserID = r.mint()
		res.Minted = true
	}

	name := NormalizeDisplayName(displayName)
	stored, hasProfile := r.store.Get(res.UserID)

	switch {
	case name != "":
		res.DisplayName = name
		res.Renamed = hasProfile && stored.DisplayName != name
		r.store.Put(Profile{UserID: res.UserID, DisplayName: name})

	case hasProfile:
		res.DisplayName = stored.DisplayName

	default:
		res.NeedsName = true
	}

	return res
}

// NormalizeDisplayName trims name, converts it to NFC, removes control characters and
// truncates it to MaxDisplayNameLength characters. A blank result means "no name".
func NormalizeDisplayName(name string) string {
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "")
	}

	name = norm.NFC.String(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxDisplayNameLength]))
	}

	return name
}
