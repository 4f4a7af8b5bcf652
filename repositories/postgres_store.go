package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/Dosada05/padel-live/models"
	"github.com/lib/pq"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

type postgresStore struct {
	db   *sql.DB
	exec SQLExecutor
	tx   *sql.Tx
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db, exec: db}
}

func (s *postgresStore) InTx(ctx context.Context, fn func(tx Store) error) (txErr error) {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Printf("Error during rollback: %v. Original error: %v", rbErr, txErr)
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(&postgresStore{db: s.db, exec: tx, tx: tx})
	return txErr
}

// --- ScheduledMatch ---

const scheduledMatchColumns = `
	id, tournament_id, day, planned_time, pair1_id, pair2_id, category_id, format, status,
	court_id, match_id, outcome, outcome_reason, default_winner_pair_id, pending_dqf,
	dqf_dismissed, pre_assigned_at, created_at`

func scanScheduledMatch(row rowScanner) (*models.ScheduledMatch, error) {
	var (
		sm            models.ScheduledMatch
		outcome       sql.NullString
		outcomeReason sql.NullString
	)
	err := row.Scan(
		&sm.ID,
		&sm.TournamentID,
		&sm.Day,
		&sm.PlannedTime,
		&sm.Pair1ID,
		&sm.Pair2ID,
		&sm.CategoryID,
		&sm.Format,
		&sm.Status,
		&sm.CourtID,
		&sm.MatchID,
		&outcome,
		&outcomeReason,
		&sm.DefaultWinnerPairID,
		&sm.PendingDQF,
		&sm.DQFDismissed,
		&sm.PreAssignedAt,
		&sm.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	var kind, reason *string
	if outcome.Valid {
		kind = &outcome.String
	}
	if outcomeReason.Valid {
		reason = &outcomeReason.String
	}
	sm.Outcome = models.OutcomeFromColumns(kind, reason, sm.DefaultWinnerPairID)
	return &sm, nil
}

func (s *postgresStore) queryScheduledMatches(ctx context.Context, query string, args ...interface{}) ([]*models.ScheduledMatch, error) {
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.ScheduledMatch, 0)
	for rows.Next() {
		sm, scanErr := scanScheduledMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan scheduled match row: %w", scanErr)
		}
		matches = append(matches, sm)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during scheduled match rows iteration: %w", err)
	}
	return matches, nil
}

func (s *postgresStore) ListScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error) {
	return s.queryScheduledMatches(ctx, `SELECT`+scheduledMatchColumns+` FROM scheduled_matches ORDER BY day ASC, id ASC`)
}

func (s *postgresStore) ListScheduledMatchesByTournament(ctx context.Context, tournamentID int) ([]*models.ScheduledMatch, error) {
	return s.queryScheduledMatches(ctx,
		`SELECT`+scheduledMatchColumns+` FROM scheduled_matches WHERE tournament_id = $1 ORDER BY day ASC, planned_time ASC NULLS LAST, id ASC`,
		tournamentID)
}

func (s *postgresStore) ListOpenScheduledMatches(ctx context.Context) ([]*models.ScheduledMatch, error) {
	closed := []string{
		string(models.ScheduledStatusCompleted),
		string(models.ScheduledStatusCancelled),
		string(models.ScheduledStatusPlaying),
	}
	return s.queryScheduledMatches(ctx,
		`SELECT`+scheduledMatchColumns+` FROM scheduled_matches WHERE NOT (status = ANY($1)) ORDER BY id ASC`,
		pq.Array(closed))
}

func (s *postgresStore) getScheduledMatch(ctx context.Context, id int, forUpdate bool) (*models.ScheduledMatch, error) {
	query := `SELECT` + scheduledMatchColumns + ` FROM scheduled_matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	sm, err := scanScheduledMatch(s.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduledMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan scheduled match by id %d: %w", id, err)
	}
	return sm, nil
}

func (s *postgresStore) GetScheduledMatch(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	return s.getScheduledMatch(ctx, id, false)
}

func (s *postgresStore) GetScheduledMatchForUpdate(ctx context.Context, id int) (*models.ScheduledMatch, error) {
	return s.getScheduledMatch(ctx, id, true)
}

func (s *postgresStore) GetScheduledMatchByMatchID(ctx context.Context, matchID int) (*models.ScheduledMatch, error) {
	query := `SELECT` + scheduledMatchColumns + ` FROM scheduled_matches WHERE match_id = $1 LIMIT 1 FOR UPDATE`
	if s.tx == nil {
		query = `SELECT` + scheduledMatchColumns + ` FROM scheduled_matches WHERE match_id = $1 LIMIT 1`
	}
	sm, err := scanScheduledMatch(s.exec.QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScheduledMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan scheduled match by match id %d: %w", matchID, err)
	}
	return sm, nil
}

func (s *postgresStore) CreateScheduledMatch(ctx context.Context, sm *models.ScheduledMatch, players []*models.ScheduledMatchPlayer) error {
	return s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		kind, reason := sm.OutcomeColumns()
		err := ptx.exec.QueryRowContext(ctx, `
			INSERT INTO scheduled_matches
				(tournament_id, day, planned_time, pair1_id, pair2_id, category_id, format, status,
				 court_id, match_id, outcome, outcome_reason, default_winner_pair_id, pending_dqf, dqf_dismissed, pre_assigned_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id, created_at`,
			sm.TournamentID, sm.Day, sm.PlannedTime, sm.Pair1ID, sm.Pair2ID, sm.CategoryID, sm.Format, sm.Status,
			sm.CourtID, sm.MatchID, kind, reason, sm.DefaultWinnerPairID, sm.PendingDQF, sm.DQFDismissed, sm.PreAssignedAt,
		).Scan(&sm.ID, &sm.CreatedAt)
		if err != nil {
			return handleScheduledMatchError(err)
		}

		for _, p := range players {
			p.ScheduledMatchID = sm.ID
			_, err := ptx.exec.ExecContext(ctx, `
				INSERT INTO scheduled_match_players
					(scheduled_match_id, player_id, pair_id, is_present, check_in_time, checked_in_by)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				p.ScheduledMatchID, p.PlayerID, p.PairID, p.IsPresent, p.CheckInTime, p.CheckedInBy)
			if err != nil {
				return fmt.Errorf("failed to insert player %d for scheduled match %d: %w", p.PlayerID, sm.ID, handleScheduledMatchError(err))
			}
		}
		return nil
	})
}

func (s *postgresStore) UpdateScheduledMatch(ctx context.Context, id int, apply func(*models.ScheduledMatch)) (*models.ScheduledMatch, error) {
	var updated *models.ScheduledMatch
	err := s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		sm, err := ptx.GetScheduledMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		apply(sm)
		sm.ID = id
		kind, reason := sm.OutcomeColumns()
		result, err := ptx.exec.ExecContext(ctx, `
			UPDATE scheduled_matches
			SET day = $1, planned_time = $2, pair1_id = $3, pair2_id = $4, category_id = $5, format = $6,
			    status = $7, court_id = $8, match_id = $9, outcome = $10, outcome_reason = $11,
			    default_winner_pair_id = $12, pending_dqf = $13, dqf_dismissed = $14, pre_assigned_at = $15
			WHERE id = $16`,
			sm.Day, sm.PlannedTime, sm.Pair1ID, sm.Pair2ID, sm.CategoryID, sm.Format,
			sm.Status, sm.CourtID, sm.MatchID, kind, reason,
			sm.DefaultWinnerPairID, sm.PendingDQF, sm.DQFDismissed, sm.PreAssignedAt, id)
		if err != nil {
			return handleScheduledMatchError(err)
		}
		if err := checkAffectedRows(result, ErrScheduledMatchNotFound); err != nil {
			return err
		}
		updated = sm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *postgresStore) DeleteScheduledMatch(ctx context.Context, id int) error {
	return s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		if _, err := ptx.exec.ExecContext(ctx, `DELETE FROM scheduled_match_players WHERE scheduled_match_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete players of scheduled match %d: %w", id, err)
		}
		result, err := ptx.exec.ExecContext(ctx, `DELETE FROM scheduled_matches WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete scheduled match %d: %w", id, err)
		}
		return checkAffectedRows(result, ErrScheduledMatchNotFound)
	})
}

func handleScheduledMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "scheduled_matches_tournament_id_fkey",
			"scheduled_matches_pair1_id_fkey",
			"scheduled_matches_pair2_id_fkey",
			"scheduled_matches_court_id_fkey",
			"scheduled_matches_distinct_pairs":
			return ErrScheduledMatchInvalid
		case "scheduled_match_players_pkey":
			return fmt.Errorf("duplicate player in scheduled match: %w", ErrScheduledMatchInvalid)
		}
	}
	return err
}

// --- ScheduledMatchPlayer ---

const playerColumns = `scheduled_match_id, player_id, pair_id, is_present, check_in_time, checked_in_by`

func scanPlayer(row rowScanner) (*models.ScheduledMatchPlayer, error) {
	var p models.ScheduledMatchPlayer
	if err := row.Scan(&p.ScheduledMatchID, &p.PlayerID, &p.PairID, &p.IsPresent, &p.CheckInTime, &p.CheckedInBy); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *postgresStore) GetScheduledMatchPlayers(ctx context.Context, scheduledMatchID int) ([]*models.ScheduledMatchPlayer, error) {
	rows, err := s.exec.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM scheduled_match_players WHERE scheduled_match_id = $1 ORDER BY pair_id ASC, player_id ASC`,
		scheduledMatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players for scheduled match %d: %w", scheduledMatchID, err)
	}
	defer rows.Close()

	players := make([]*models.ScheduledMatchPlayer, 0, 4)
	for rows.Next() {
		p, scanErr := scanPlayer(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan scheduled match player row: %w", scanErr)
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during scheduled match player rows iteration: %w", err)
	}
	if len(players) == 0 {
		if _, err := s.GetScheduledMatch(ctx, scheduledMatchID); err != nil {
			return nil, err
		}
	}
	return players, nil
}

func (s *postgresStore) UpdateScheduledMatchPlayer(ctx context.Context, scheduledMatchID, playerID int, apply func(*models.ScheduledMatchPlayer)) (*models.ScheduledMatchPlayer, error) {
	var updated *models.ScheduledMatchPlayer
	err := s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		p, err := scanPlayer(ptx.exec.QueryRowContext(ctx,
			`SELECT `+playerColumns+` FROM scheduled_match_players WHERE scheduled_match_id = $1 AND player_id = $2 FOR UPDATE`,
			scheduledMatchID, playerID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPlayerNotInMatch
			}
			return fmt.Errorf("failed to scan player %d of scheduled match %d: %w", playerID, scheduledMatchID, err)
		}
		apply(p)
		p.ScheduledMatchID, p.PlayerID = scheduledMatchID, playerID
		result, err := ptx.exec.ExecContext(ctx, `
			UPDATE scheduled_match_players
			SET is_present = $1, check_in_time = $2, checked_in_by = $3
			WHERE scheduled_match_id = $4 AND player_id = $5`,
			p.IsPresent, p.CheckInTime, p.CheckedInBy, scheduledMatchID, playerID)
		if err != nil {
			return fmt.Errorf("failed to update player %d of scheduled match %d: %w", playerID, scheduledMatchID, err)
		}
		if err := checkAffectedRows(result, ErrPlayerNotInMatch); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- Tournament / Pair ---

func (s *postgresStore) GetTournament(ctx context.Context, id int) (*models.Tournament, error) {
	var t models.Tournament
	err := s.exec.QueryRowContext(ctx,
		`SELECT id, name, club_id, timezone, created_at FROM tournaments WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.ClubID, &t.Timezone, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return &t, nil
}

func (s *postgresStore) GetPair(ctx context.Context, id int) (*models.Pair, error) {
	var p models.Pair
	err := s.exec.QueryRowContext(ctx,
		`SELECT id, tournament_id, player1_id, player2_id, category_id FROM pairs WHERE id = $1`, id,
	).Scan(&p.ID, &p.TournamentID, &p.Player1ID, &p.Player2ID, &p.CategoryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPairNotFound
		}
		return nil, fmt.Errorf("failed to scan pair by id %d: %w", id, err)
	}
	return &p, nil
}

// --- Court ---

const courtColumns = `id, name, club_id, is_available, stream_url`

func scanCourt(row rowScanner) (*models.Court, error) {
	var c models.Court
	if err := row.Scan(&c.ID, &c.Name, &c.ClubID, &c.IsAvailable, &c.StreamURL); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *postgresStore) queryCourts(ctx context.Context, query string, args ...interface{}) ([]*models.Court, error) {
	rows, err := s.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query courts: %w", err)
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		c, scanErr := scanCourt(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", scanErr)
		}
		courts = append(courts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during court rows iteration: %w", err)
	}
	return courts, nil
}

func (s *postgresStore) ListCourts(ctx context.Context) ([]*models.Court, error) {
	return s.queryCourts(ctx, `SELECT `+courtColumns+` FROM courts ORDER BY id ASC`)
}

func (s *postgresStore) ListCourtsByClub(ctx context.Context, clubID int) ([]*models.Court, error) {
	return s.queryCourts(ctx, `SELECT `+courtColumns+` FROM courts WHERE club_id = $1 ORDER BY id ASC`, clubID)
}

func (s *postgresStore) getCourt(ctx context.Context, id int, forUpdate bool) (*models.Court, error) {
	query := `SELECT ` + courtColumns + ` FROM courts WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanCourt(s.exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCourtNotFound
		}
		return nil, fmt.Errorf("failed to scan court by id %d: %w", id, err)
	}
	return c, nil
}

func (s *postgresStore) GetCourt(ctx context.Context, id int) (*models.Court, error) {
	return s.getCourt(ctx, id, false)
}

func (s *postgresStore) GetCourtForUpdate(ctx context.Context, id int) (*models.Court, error) {
	return s.getCourt(ctx, id, true)
}

func (s *postgresStore) LockFirstAvailableCourt(ctx context.Context, clubID int) (*models.Court, error) {
	// SKIP LOCKED: параллельный auto-assign берет следующий свободный корт, а не ждет.
	c, err := scanCourt(s.exec.QueryRowContext(ctx, `
		SELECT `+courtColumns+`
		FROM courts c
		WHERE c.club_id = $1 AND c.is_available = TRUE
		  AND NOT EXISTS (
			SELECT 1 FROM scheduled_matches sm
			WHERE sm.court_id = c.id AND sm.status IN ('scheduled', 'ready', 'assigned'))
		  AND NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.court_id = c.id AND m.status = 'playing')
		ORDER BY c.id ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`, clubID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAvailableCourt
		}
		return nil, fmt.Errorf("failed to lock available court for club %d: %w", clubID, err)
	}
	return c, nil
}

func (s *postgresStore) CourtInUse(ctx context.Context, courtID, exceptScheduledMatchID, exceptMatchID int) (bool, error) {
	var inUse bool
	err := s.exec.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM scheduled_matches
			WHERE court_id = $1 AND status IN ('scheduled', 'ready', 'assigned') AND id <> $2
		) OR EXISTS (
			SELECT 1 FROM matches
			WHERE court_id = $1 AND status = 'playing' AND id <> $3
		)`, courtID, exceptScheduledMatchID, exceptMatchID).Scan(&inUse)
	if err != nil {
		return false, fmt.Errorf("failed to check references of court %d: %w", courtID, err)
	}
	return inUse, nil
}

func (s *postgresStore) UpdateCourt(ctx context.Context, id int, apply func(*models.Court)) (*models.Court, error) {
	var updated *models.Court
	err := s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		c, err := ptx.GetCourtForUpdate(ctx, id)
		if err != nil {
			return err
		}
		apply(c)
		c.ID = id
		result, err := ptx.exec.ExecContext(ctx,
			`UPDATE courts SET name = $1, is_available = $2, stream_url = $3 WHERE id = $4`,
			c.Name, c.IsAvailable, c.StreamURL, id)
		if err != nil {
			return fmt.Errorf("failed to update court %d: %w", id, err)
		}
		if err := checkAffectedRows(result, ErrCourtNotFound); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- Match / Result ---

const matchColumns = `
	id, tournament_id, court_id, pair1_id, pair2_id, category_id, status, score, winner_id,
	start_time, end_time, access_token, notes`

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.CourtID,
		&m.Pair1ID,
		&m.Pair2ID,
		&m.CategoryID,
		&m.Status,
		&m.Score,
		&m.WinnerID,
		&m.StartTime,
		&m.EndTime,
		&m.AccessToken,
		&m.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *postgresStore) CreateMatch(ctx context.Context, m *models.Match) error {
	err := s.exec.QueryRowContext(ctx, `
		INSERT INTO matches
			(tournament_id, court_id, pair1_id, pair2_id, category_id, status, score, winner_id,
			 start_time, end_time, access_token, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		m.TournamentID, m.CourtID, m.Pair1ID, m.Pair2ID, m.CategoryID, m.Status, m.Score, m.WinnerID,
		m.StartTime, m.EndTime, m.AccessToken, m.Notes,
	).Scan(&m.ID)
	return handleMatchError(err)
}

func (s *postgresStore) getMatch(ctx context.Context, where string, forUpdate bool, arg interface{}) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE ` + where
	if forUpdate {
		query += ` FOR UPDATE`
	}
	m, err := scanMatch(s.exec.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match (%s): %w", where, err)
	}
	return m, nil
}

func (s *postgresStore) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	return s.getMatch(ctx, "id = $1", false, id)
}

func (s *postgresStore) GetMatchForUpdate(ctx context.Context, id int) (*models.Match, error) {
	return s.getMatch(ctx, "id = $1", true, id)
}

func (s *postgresStore) GetMatchByAccessToken(ctx context.Context, token string) (*models.Match, error) {
	if token == "" {
		return nil, ErrMatchNotFound
	}
	return s.getMatch(ctx, "access_token = $1", false, token)
}

func (s *postgresStore) ListPlayingMatches(ctx context.Context) ([]*models.Match, error) {
	rows, err := s.exec.QueryContext(ctx,
		`SELECT`+matchColumns+` FROM matches WHERE status = $1 ORDER BY id ASC`, models.MatchStatusPlaying)
	if err != nil {
		return nil, fmt.Errorf("failed to query playing matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (s *postgresStore) UpdateMatch(ctx context.Context, id int, apply func(*models.Match)) (*models.Match, error) {
	var updated *models.Match
	err := s.InTx(ctx, func(tx Store) error {
		ptx := tx.(*postgresStore)
		m, err := ptx.GetMatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		apply(m)
		m.ID = id
		result, err := ptx.exec.ExecContext(ctx, `
			UPDATE matches
			SET court_id = $1, status = $2, score = $3, winner_id = $4, end_time = $5, notes = $6
			WHERE id = $7`,
			m.CourtID, m.Status, m.Score, m.WinnerID, m.EndTime, m.Notes, id)
		if err != nil {
			return handleMatchError(err)
		}
		if err := checkAffectedRows(result, ErrMatchNotFound); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *postgresStore) CreateResult(ctx context.Context, r *models.Result) error {
	err := s.exec.QueryRowContext(ctx, `
		INSERT INTO results (match_id, winner_id, loser_id, score, duration_seconds)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		r.MatchID, r.WinnerID, r.LoserID, r.Score, r.DurationSeconds,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "results_match_id_fkey" {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to insert result for match %d: %w", r.MatchID, err)
	}
	return nil
}

func handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// "23503": foreign_key_violation, "23505": unique_violation
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey", "matches_court_id_fkey", "matches_pair1_id_fkey", "matches_pair2_id_fkey":
			return ErrMatchInvalid
		case "matches_one_playing_per_court":
			return ErrCourtOccupied
		case "matches_access_token_key":
			return fmt.Errorf("access token conflict: %w", err)
		}
	}
	return err
}
