package repositories

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Dosada05/padel-live/models"
)

// MemoryStore - эталонная in-memory реализация Store.
// Транзакция держит общий мьютекс целиком, поэтому InTx сериализует все изменения;
// при ошибке состояние восстанавливается из снимка, сделанного перед fn.
type MemoryStore struct {
	mu    *sync.Mutex
	state *memoryState
	inTx  bool
	now   func() time.Time
}

type memoryState struct {
	scheduled   map[int]*models.ScheduledMatch
	players     map[int][]*models.ScheduledMatchPlayer
	tournaments map[int]*models.Tournament
	pairs       map[int]*models.Pair
	courts      map[int]*models.Court
	matches     map[int]*models.Match
	results     map[int]*models.Result

	lastScheduledID int
	lastMatchID     int
	lastResultID    int
	lastCourtID     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu: &sync.Mutex{},
		state: &memoryState{
			scheduled:   make(map[int]*models.ScheduledMatch),
			players:     make(map[int][]*models.ScheduledMatchPlayer),
			tournaments: make(map[int]*models.Tournament),
			pairs:       make(map[int]*models.Pair),
			courts:      make(map[int]*models.Court),
			matches:     make(map[int]*models.Match),
			results:     make(map[int]*models.Result),
		},
		now: time.Now,
	}
}

// WithClock подменяет источник времени для CreatedAt (для тестов).
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) acquire() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st *memoryState) clone() *memoryState {
	c := *st
	c.scheduled = make(map[int]*models.ScheduledMatch, len(st.scheduled))
	for id, sm := range st.scheduled {
		c.scheduled[id] = sm.Clone()
	}
	c.players = make(map[int][]*models.ScheduledMatchPlayer, len(st.players))
	for id, rows := range st.players {
		cp := make([]*models.ScheduledMatchPlayer, len(rows))
		for i, p := range rows {
			cp[i] = p.Clone()
		}
		c.players[id] = cp
	}
	c.tournaments = make(map[int]*models.Tournament, len(st.tournaments))
	for id, t := range st.tournaments {
		c.tournaments[id] = cloneTournament(t)
	}
	c.pairs = make(map[int]*models.Pair, len(st.pairs))
	for id, p := range st.pairs {
		cp := *p
		c.pairs[id] = &cp
	}
	c.courts = make(map[int]*models.Court, len(st.courts))
	for id, court := range st.courts {
		c.courts[id] = court.Clone()
	}
	c.matches = make(map[int]*models.Match, len(st.matches))
	for id, m := range st.matches {
		c.matches[id] = m.Clone()
	}
	c.results = make(map[int]*models.Result, len(st.results))
	for id, r := range st.results {
		cp := *r
		c.results[id] = &cp
	}
	return &c
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	cp := *t
	if t.Timezone != nil {
		tz := *t.Timezone
		cp.Timezone = &tz
	}
	return &cp
}

// --- Наполнение справочников (игроки, клубы, корты ведутся внешней системой) ---

func (s *MemoryStore) AddTournament(t *models.Tournament) {
	defer s.acquire()()
	s.state.tournaments[t.ID] = cloneTournament(t)
}

func (s *MemoryStore) AddPair(p *models.Pair) {
	defer s.acquire()()
	cp := *p
	s.state.pairs[p.ID] = &cp
}

// AddCourt сохраняет корт; при нулевом ID выдает следующий.
func (s *MemoryStore) AddCourt(c *models.Court) {
	defer s.acquire()()
	if c.ID == 0 {
		s.state.lastCourtID++
		c.ID = s.state.lastCourtID
	} else if c.ID > s.state.lastCourtID {
		s.state.lastCourtID = c.ID
	}
	s.state.courts[c.ID] = c.Clone()
}

// --- ScheduledMatch ---

func (s *MemoryStore) ListScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error) {
	defer s.acquire()()
	return s.filterScheduled(func(*models.ScheduledMatch) bool { return true }), nil
}

func (s *MemoryStore) ListScheduledMatchesByTournament(ctx context.Context, tournamentID int) ([]*models.ScheduledMatch, error) {
	defer s.acquire()()
	return s.filterScheduled(func(sm *models.ScheduledMatch) bool { return sm.TournamentID == tournamentID }), nil
}

func (s *MemoryStore) ListOpenScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error) {
	defer s.acquire()()
	return s.filterScheduled(func(sm *models.ScheduledMatch) bool {
		return !sm.Status.IsTerminal() && sm.Status != models.ScheduledStatusPlaying
	}), nil
}

func (s *MemoryStore) filterScheduled(keep func(*models.ScheduledMatch) bool) []*models.ScheduledMatch {
	out := make([]*models.ScheduledMatch, 0)
	for _, id := range slices.Sorted(maps.Keys(s.state.scheduled)) {
		sm := s.state.scheduled[id]
		if keep(sm) {
			out = append(out, sm.Clone())
		}
	}
	return out
}

func (s *MemoryStore) GetScheduledMatch(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	defer s.acquire()()
	sm, ok := s.state.scheduled[id]
	if !ok {
		return nil, ErrScheduledMatchNotFound
	}
	return sm.Clone(), nil
}

func (s *MemoryStore) GetScheduledMatchForUpdate(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	return s.GetScheduledMatch(ctx, id)
}

func (s *MemoryStore) GetScheduledMatchByMatchID(ctx context.Context, matchID int) (*models.ScheduledMatch, error) {
	defer s.acquire()()
	for _, id := range slices.Sorted(maps.Keys(s.state.scheduled)) {
		sm := s.state.scheduled[id]
		if sm.MatchID != nil && *sm.MatchID == matchID {
			return sm.Clone(), nil
		}
	}
	return nil, ErrScheduledMatchNotFound
}

func (s *MemoryStore) CreateScheduledMatch(ctx context.Context, sm *models.ScheduledMatch, players []*models.ScheduledMatchPlayer) error {
	defer s.acquire()()
	if _, ok := s.state.tournaments[sm.TournamentID]; !ok {
		return ErrScheduledMatchInvalid
	}
	for _, pairID := range []int{sm.Pair1ID, sm.Pair2ID} {
		if _, ok := s.state.pairs[pairID]; !ok {
			return ErrScheduledMatchInvalid
		}
	}
	s.state.lastScheduledID++
	sm.ID = s.state.lastScheduledID
	if sm.CreatedAt.IsZero() {
		sm.CreatedAt = s.now().UTC()
	}
	s.state.scheduled[sm.ID] = sm.Clone()

	rows := make([]*models.ScheduledMatchPlayer, len(players))
	for i, p := range players {
		p.ScheduledMatchID = sm.ID
		rows[i] = p.Clone()
	}
	s.state.players[sm.ID] = rows
	return nil
}

func (s *MemoryStore) UpdateScheduledMatch(ctx context.Context, id int, apply func(*models.ScheduledMatch)) (*models.ScheduledMatch, error) {
	defer s.acquire()()
	sm, ok := s.state.scheduled[id]
	if !ok {
		return nil, ErrScheduledMatchNotFound
	}
	updated := sm.Clone()
	apply(updated)
	updated.ID = id
	s.state.scheduled[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) DeleteScheduledMatch(ctx context.Context, id int) error {
	defer s.acquire()()
	if _, ok := s.state.scheduled[id]; !ok {
		return ErrScheduledMatchNotFound
	}
	delete(s.state.scheduled, id)
	delete(s.state.players, id)
	return nil
}

func (s *MemoryStore) GetScheduledMatchPlayers(ctx context.Context, scheduledMatchID int) ([]*models.ScheduledMatchPlayer, error) {
	defer s.acquire()()
	if _, ok := s.state.scheduled[scheduledMatchID]; !ok {
		return nil, ErrScheduledMatchNotFound
	}
	rows := s.state.players[scheduledMatchID]
	out := make([]*models.ScheduledMatchPlayer, len(rows))
	for i, p := range rows {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *MemoryStore) UpdateScheduledMatchPlayer(ctx context.Context, scheduledMatchID, playerID int, apply func(*models.ScheduledMatchPlayer)) (*models.ScheduledMatchPlayer, error) {
	defer s.acquire()()
	for i, p := range s.state.players[scheduledMatchID] {
		if p.PlayerID != playerID {
			continue
		}
		updated := p.Clone()
		apply(updated)
		updated.ScheduledMatchID, updated.PlayerID, updated.PairID = p.ScheduledMatchID, p.PlayerID, p.PairID
		s.state.players[scheduledMatchID][i] = updated
		return updated.Clone(), nil
	}
	return nil, ErrPlayerNotInMatch
}

// --- Справочники ---

func (s *MemoryStore) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	defer s.acquire()()
	t, ok := s.state.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return cloneTournament(t), nil
}

func (s *MemoryStore) GetPair(ctx context.Context, id int) (*models.Pair, error) {
	defer s.acquire()()
	p, ok := s.state.pairs[id]
	if !ok {
		return nil, ErrPairNotFound
	}
	cp := *p
	return &cp, nil
}

// --- Courts ---

func (s *MemoryStore) ListCourts(ctx context.Context) ([]*models.Court, error) {
	defer s.acquire()()
	return s.filterCourts(func(*models.Court) bool { return true }), nil
}

func (s *MemoryStore) ListCourtsByClub(ctx context.Context, clubID int) ([]*models.Court, error) {
	defer s.acquire()()
	return s.filterCourts(func(c *models.Court) bool { return c.ClubID == clubID }), nil
}

func (s *MemoryStore) filterCourts(keep func(*models.Court) bool) []*models.Court {
	out := make([]*models.Court, 0)
	for _, id := range slices.Sorted(maps.Keys(s.state.courts)) {
		if c := s.state.courts[id]; keep(c) {
			out = append(out, c.Clone())
		}
	}
	return out
}

func (s *MemoryStore) GetCourt(ctx context.Context, id int) (*models.Court, error) {
	defer s.acquire()()
	c, ok := s.state.courts[id]
	if !ok {
		return nil, ErrCourtNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) GetCourtForUpdate(ctx context.Context, id int) (*models.Court, error) {
	return s.GetCourt(ctx, id)
}

func (s *MemoryStore) LockFirstAvailableCourt(ctx context.Context, clubID int) (*models.Court, error) {
	defer s.acquire()()
	free := s.filterCourts(func(c *models.Court) bool {
		return c.ClubID == clubID && c.IsAvailable && !s.courtInUseLocked(c.ID, 0, 0)
	})
	if len(free) == 0 {
		return nil, ErrNoAvailableCourt
	}
	return free[0], nil
}

func (s *MemoryStore) CourtInUse(ctx context.Context, courtID, exceptScheduledMatchID, exceptMatchID int) (bool, error) {
	defer s.acquire()()
	return s.courtInUseLocked(courtID, exceptScheduledMatchID, exceptMatchID), nil
}

func (s *MemoryStore) courtInUseLocked(courtID, exceptScheduledMatchID, exceptMatchID int) bool {
	for id, sm := range s.state.scheduled {
		if id != exceptScheduledMatchID && sm.Status.IsPrePlaying() && sm.CourtID != nil && *sm.CourtID == courtID {
			return true
		}
	}
	for id, m := range s.state.matches {
		if id != exceptMatchID && m.Status == models.MatchStatusPlaying && m.CourtID != nil && *m.CourtID == courtID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdateCourt(ctx context.Context, id int, apply func(*models.Court)) (*models.Court, error) {
	defer s.acquire()()
	c, ok := s.state.courts[id]
	if !ok {
		return nil, ErrCourtNotFound
	}
	updated := c.Clone()
	apply(updated)
	updated.ID = id
	s.state.courts[id] = updated
	return updated.Clone(), nil
}

// --- Matches / Results ---

func (s *MemoryStore) CreateMatch(ctx context.Context, match *models.Match) error {
	defer s.acquire()()
	if _, ok := s.state.tournaments[match.TournamentID]; !ok {
		return ErrMatchInvalid
	}
	if match.CourtID != nil {
		if _, ok := s.state.courts[*match.CourtID]; !ok {
			return ErrMatchInvalid
		}
		if match.Status == models.MatchStatusPlaying {
			for _, other := range s.state.matches {
				if other.Status == models.MatchStatusPlaying && other.CourtID != nil && *other.CourtID == *match.CourtID {
					return ErrCourtOccupied
				}
			}
		}
	}
	s.state.lastMatchID++
	match.ID = s.state.lastMatchID
	s.state.matches[match.ID] = match.Clone()
	return nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	defer s.acquire()()
	m, ok := s.state.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) GetMatchForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return s.GetMatch(ctx, id)
}

func (s *MemoryStore) GetMatchByAccessToken(ctx context.Context, token string) (*models.Match, error) {
	defer s.acquire()()
	if token == "" {
		return nil, ErrMatchNotFound
	}
	for _, m := range s.state.matches {
		if m.AccessToken == token {
			return m.Clone(), nil
		}
	}
	return nil, ErrMatchNotFound
}

func (s *MemoryStore) ListPlayingMatches(ctx context.Context) ([]*models.Match, error) {
	defer s.acquire()()
	out := make([]*models.Match, 0)
	for _, id := range slices.Sorted(maps.Keys(s.state.matches)) {
		if m := s.state.matches[id]; m.Status == models.MatchStatusPlaying {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateMatch(ctx context.Context, id int, apply func(*models.Match)) (*models.Match, error) {
	defer s.acquire()()
	m, ok := s.state.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	updated := m.Clone()
	apply(updated)
	updated.ID = id
	s.state.matches[id] = updated
	return updated.Clone(), nil
}

func (s *MemoryStore) CreateResult(ctx context.Context, result *models.Result) error {
	defer s.acquire()()
	if _, ok := s.state.matches[result.MatchID]; !ok {
		return ErrMatchNotFound
	}
	s.state.lastResultID++
	result.ID = s.state.lastResultID
	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.now().UTC()
	}
	cp := *result
	s.state.results[result.ID] = &cp
	return nil
}

// ResultsByMatch - вспомогательный метод для тестов и отладки.
func (s *MemoryStore) ResultsByMatch(matchID int) []*models.Result {
	defer s.acquire()()
	out := make([]*models.Result, 0)
	for _, id := range slices.Sorted(maps.Keys(s.state.results)) {
		if r := s.state.results[id]; r.MatchID == matchID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &MemoryStore{mu: s.mu, state: s.state, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}
