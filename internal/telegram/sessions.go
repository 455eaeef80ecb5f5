package telegram

import (
	"sync"
	"time"

	"github.com/inyogeshwar/YTMusicLabBot/internal/youtube"
)

const sessionTTL = 30 * time.Minute

// session holds a user's in-flight search results, pending selection, and
// last lyrics match. Sessions are in-memory only and expire after
// sessionTTL of inactivity.
type session struct {
	results     []youtube.Track
	pending     *youtube.Track
	lyricsQuery string
	touched     time.Time
}

type sessionStore struct {
	mu     sync.Mutex
	byUser map[int64]*session
	now    func() time.Time
}

func newSessionStore() *sessionStore {
	return &sessionStore{
		byUser: make(map[int64]*session),
		now:    time.Now,
	}
}

func (s *sessionStore) get(userID int64) *session {
	sess, ok := s.byUser[userID]
	if !ok || s.now().Sub(sess.touched) > sessionTTL {
		sess = &session{}
		s.byUser[userID] = sess
	}
	sess.touched = s.now()
	return sess
}

// SetResults stores a fresh result list, dropping any pending selection.
func (s *sessionStore) SetResults(userID int64, tracks []youtube.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID)
	sess.results = tracks
	sess.pending = nil
}

// Result returns the index-th stored search result.
func (s *sessionStore) Result(userID int64, index int) (youtube.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[userID]
	if !ok || s.now().Sub(sess.touched) > sessionTTL {
		return youtube.Track{}, false
	}
	if index < 0 || index >= len(sess.results) {
		return youtube.Track{}, false
	}
	sess.touched = s.now()

	return sess.results[index], true
}

// SetPending remembers the track a user picked while they choose a format.
func (s *sessionStore) SetPending(userID int64, track youtube.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID)
	sess.pending = &track
}

// Pending returns the user's selected track, if any.
func (s *sessionStore) Pending(userID int64) (youtube.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[userID]
	if !ok || sess.pending == nil || s.now().Sub(sess.touched) > sessionTTL {
		return youtube.Track{}, false
	}
	sess.touched = s.now()

	return *sess.pending, true
}

// SetLyricsQuery remembers the song a lyrics lookup matched so its
// download button can find it again.
func (s *sessionStore) SetLyricsQuery(userID int64, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID)
	sess.lyricsQuery = query
}

// LyricsQuery returns the last lyrics match, if any.
func (s *sessionStore) LyricsQuery(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[userID]
	if !ok || sess.lyricsQuery == "" || s.now().Sub(sess.touched) > sessionTTL {
		return "", false
	}
	sess.touched = s.now()

	return sess.lyricsQuery, true
}

// Clear drops the user's session entirely.
func (s *sessionStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byUser, userID)
}
