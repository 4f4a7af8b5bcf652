package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/padel-live/broadcast"
	"github.com/Dosada05/padel-live/models"
	"github.com/Dosada05/padel-live/repositories"
	"github.com/Dosada05/padel-live/timezone"
	"golang.org/x/sync/semaphore"
)

// ProcessorConfig - параметры периодической проверки опозданий.
type ProcessorConfig struct {
	Interval        time.Duration
	Tolerance       time.Duration
	BackfillGuard   time.Duration
	DefaultTimezone string
}

func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		Interval:        60 * time.Second,
		Tolerance:       15 * time.Minute,
		BackfillGuard:   2 * time.Hour,
		DefaultTimezone: models.DefaultTimezone,
	}
}

// SweepReport - итог одного прохода.
type SweepReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Skipped   int           `json:"skipped"`
	Flagged   int           `json:"flagged"`
	Failed    int           `json:"failed"`
}

type TimeoutProcessor interface {
	// Sweep выполняет один проход. ErrSweepInProgress, если предыдущий проход еще идет.
	Sweep(ctx context.Context) (*SweepReport, error)
	// Run запускает проходы сразу и затем по таймеру до отмены ctx.
	Run(ctx context.Context) error
}

type timeoutProcessor struct {
	store     repositories.Store
	publisher broadcast.Publisher
	cfg       ProcessorConfig
	logger    *slog.Logger
	clock     Clock
	running   *semaphore.Weighted
}

func NewTimeoutProcessor(
	store repositories.Store,
	publisher broadcast.Publisher,
	cfg ProcessorConfig,
	logger *slog.Logger,
	clock Clock,
) TimeoutProcessor {
	defaults := DefaultProcessorConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = defaults.Tolerance
	}
	if cfg.BackfillGuard <= 0 {
		cfg.BackfillGuard = defaults.BackfillGuard
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = defaults.DefaultTimezone
	}
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &timeoutProcessor{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		clock:     clock,
		running:   semaphore.NewWeighted(1),
	}
}

func (p *timeoutProcessor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	p.logger.Info("Timeout processor started", slog.Duration("interval", p.cfg.Interval))

	// Run once immediately at startup, then on ticker
	p.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Timeout processor stopped")
			return nil
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *timeoutProcessor) runOnce(ctx context.Context) {
	if _, err := p.Sweep(ctx); err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			p.logger.Warn("Timeout processor: previous sweep still running, tick skipped")
			return
		}
		p.logger.Error("Timeout processor: sweep failed", slog.Any("error", err))
	}
}

// sweepDecision - что проход сделал с одним матчем.
type sweepDecision int

const (
	decisionNoPlannedTime sweepDecision = iota
	decisionBackfill
	decisionNotDue
	decisionAlreadyFlagged
	decisionDismissed
	decisionBothConfirmed
	decisionNeitherConfirmed
	decisionFlagged
	decisionStale // матч изменился между чтением и блокировкой
)

func (d sweepDecision) String() string {
	switch d {
	case decisionNoPlannedTime:
		return "no_planned_time"
	case decisionBackfill:
		return "backfill"
	case decisionNotDue:
		return "not_due"
	case decisionAlreadyFlagged:
		return "already_flagged"
	case decisionDismissed:
		return "dismissed"
	case decisionBothConfirmed:
		return "both_confirmed"
	case decisionNeitherConfirmed:
		return "neither_confirmed"
	case decisionFlagged:
		return "flagged"
	case decisionStale:
		return "stale"
	}
	return "unknown"
}

type zoneEntry struct {
	loc *time.Location
	err error
}

func (p *timeoutProcessor) Sweep(ctx context.Context) (*SweepReport, error) {
	if !p.running.TryAcquire(1) {
		return nil, ErrSweepInProgress
	}
	defer p.running.Release(1)

	now := p.clock.now()
	report := &SweepReport{StartedAt: now}

	matches, err := p.store.ListOpenScheduledMatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("timeout sweep: list open scheduled matches: %w", err)
	}

	zones := make(map[int]zoneEntry)
	for _, sm := range matches {
		report.Scanned++
		decision, err := p.evaluate(ctx, sm, now, zones)
		if err != nil {
			report.Failed++
			p.logger.Warn("Timeout processor: scheduled match skipped",
				slog.Int("scheduled_match_id", sm.ID),
				slog.Int("tournament_id", sm.TournamentID),
				slog.Any("error", err))
			continue
		}
		if decision == decisionFlagged {
			report.Flagged++
			continue
		}
		report.Skipped++
		p.logger.Debug("Timeout processor: no action",
			slog.Int("scheduled_match_id", sm.ID),
			slog.String("reason", decision.String()))
	}

	report.Duration = p.clock.now().Sub(now)
	if report.Flagged > 0 || report.Failed > 0 {
		p.logger.Info("Timeout sweep finished",
			slog.Int("scanned", report.Scanned),
			slog.Int("flagged", report.Flagged),
			slog.Int("failed", report.Failed))
	} else {
		p.logger.Debug("Timeout sweep finished", slog.Int("scanned", report.Scanned))
	}
	return report, nil
}

func (p *timeoutProcessor) location(ctx context.Context, tournamentID int, zones map[int]zoneEntry) (*time.Location, error) {
	if entry, ok := zones[tournamentID]; ok {
		return entry.loc, entry.err
	}
	var entry zoneEntry
	tournament, err := p.store.GetTournament(ctx, tournamentID)
	if err != nil {
		entry.err = fmt.Errorf("load tournament %d: %w", tournamentID, handleRepositoryError(err, "get tournament"))
	} else {
		entry.loc, entry.err = timezone.LoadLocation(tournament.TimezoneOr(p.cfg.DefaultTimezone))
	}
	zones[tournamentID] = entry
	return entry.loc, entry.err
}

// deadline - момент, после которого неявка считается опозданием.
func (p *timeoutProcessor) deadline(ctx context.Context, sm *models.ScheduledMatch, zones map[int]zoneEntry) (time.Time, error) {
	loc, err := p.location(ctx, sm.TournamentID, zones)
	if err != nil {
		return time.Time{}, err
	}
	matchInstant, err := timezone.CombineDateAndTimeIn(sm.Day, *sm.PlannedTime, loc)
	if err != nil {
		return time.Time{}, err
	}
	return matchInstant.Add(p.cfg.Tolerance), nil
}

func (p *timeoutProcessor) evaluate(ctx context.Context, sm *models.ScheduledMatch, now time.Time, zones map[int]zoneEntry) (sweepDecision, error) {
	if sm.PlannedTime == nil || *sm.PlannedTime == "" {
		return decisionNoPlannedTime, nil
	}
	deadline, err := p.deadline(ctx, sm, zones)
	if err != nil {
		return 0, err
	}
	if late := sm.CreatedAt.Sub(deadline); late >= 0 && late <= p.cfg.BackfillGuard {
		return decisionBackfill, nil
	}
	if now.Before(deadline) {
		return decisionNotDue, nil
	}
	if sm.PendingDQF {
		return decisionAlreadyFlagged, nil
	}
	if sm.DQFDismissed {
		return decisionDismissed, nil
	}
	return p.adjudicate(ctx, sm.ID)
}

// adjudicate перечитывает матч и игроков под блокировкой и применяет один из четырех случаев.
func (p *timeoutProcessor) adjudicate(ctx context.Context, scheduledMatchID int) (sweepDecision, error) {
	var (
		decision sweepDecision
		flagged  *models.ScheduledMatch
	)
	err := p.store.InTx(ctx, func(tx repositories.Store) error {
		sm, err := tx.GetScheduledMatchForUpdate(ctx, scheduledMatchID)
		if err != nil {
			return err
		}
		if sm.PendingDQF {
			decision = decisionAlreadyFlagged
			return nil
		}
		if sm.DQFDismissed {
			decision = decisionDismissed
			return nil
		}
		if !sm.Status.IsPrePlaying() {
			decision = decisionStale
			return nil
		}
		players, err := tx.GetScheduledMatchPlayers(ctx, sm.ID)
		if err != nil {
			return err
		}
		pr := countPresence(sm, players)

		var winner int
		switch {
		case pr.pair1Confirmed() && !pr.pair2Confirmed():
			winner = sm.Pair1ID
		case pr.pair2Confirmed() && !pr.pair1Confirmed():
			winner = sm.Pair2ID
		case pr.pair1Confirmed() && pr.pair2Confirmed():
			decision = decisionBothConfirmed
			return nil
		default:
			// Без автоматической отмены: матч без единой отметки решает администратор.
			decision = decisionNeitherConfirmed
			return nil
		}

		flagged, err = tx.UpdateScheduledMatch(ctx, sm.ID, func(m *models.ScheduledMatch) {
			m.PendingDQF = true
			m.DefaultWinnerPairID = intPtr(winner)
		})
		if err != nil {
			return err
		}
		decision = decisionFlagged
		return nil
	})
	if err != nil {
		return 0, handleRepositoryError(err, "adjudicate scheduled match")
	}

	if flagged != nil {
		p.logger.Info("Scheduled match flagged for default win",
			slog.Int("scheduled_match_id", flagged.ID),
			slog.Int("tournament_id", flagged.TournamentID),
			slog.Int("default_winner_pair_id", *flagged.DefaultWinnerPairID))
		p.publisher.Publish(ctx, broadcast.NewEvent(broadcast.EventMatchPendingDQF, flagged.TournamentID, flagged))
	}
	return decision, nil
}
