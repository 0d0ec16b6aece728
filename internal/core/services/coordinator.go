package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/castn/sourceswitch/internal/core/domain"
	"github.com/castn/sourceswitch/internal/core/ports/driven"
	"github.com/castn/sourceswitch/internal/core/ports/driving"
	"github.com/castn/sourceswitch/internal/metrics"
)

// Ensure SwitchCoordinator implements driving.SwitchCoordinator
var _ driving.SwitchCoordinator = (*SwitchCoordinator)(nil)

const (
	DefaultChapterFetchTimeout = 30 * time.Second
	bookkeepingTimeout         = 10 * time.Second
)

// SwitchCoordinator orchestrates change-source operations.
// It keeps at most one live operation per book: starting a new one cancels
// the previous one first. Operations on different books run independently.
type SwitchCoordinator struct {
	registry       *SourceRegistry
	aggregator     *SearchAggregator
	preferences    *PreferenceCache
	clients        driven.SourceClientFactory
	books          driven.BookStore
	weights        domain.WeightModel
	searchDeadline time.Duration
	fetchTimeout   time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time

	mu     sync.Mutex
	active map[string]*Operation
}

// SwitchCoordinatorConfig holds dependencies for SwitchCoordinator.
type SwitchCoordinatorConfig struct {
	Registry            *SourceRegistry
	Aggregator          *SearchAggregator
	Preferences         *PreferenceCache
	Clients             driven.SourceClientFactory
	Books               driven.BookStore // Optional; when set the new book and chapters are stored together
	Weights             domain.WeightModel
	SearchDeadline      time.Duration
	ChapterFetchTimeout time.Duration
	Metrics             *metrics.Metrics
	Logger              *slog.Logger
	Now                 func() time.Time
}

// NewSwitchCoordinator creates a new SwitchCoordinator.
func NewSwitchCoordinator(cfg SwitchCoordinatorConfig) *SwitchCoordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	deadline := cfg.SearchDeadline
	if deadline <= 0 {
		deadline = DefaultSearchDeadline
	}
	fetchTimeout := cfg.ChapterFetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultChapterFetchTimeout
	}

	return &SwitchCoordinator{
		registry:       cfg.Registry,
		aggregator:     cfg.Aggregator,
		preferences:    cfg.Preferences,
		clients:        cfg.Clients,
		books:          cfg.Books,
		weights:        cfg.Weights,
		searchDeadline: deadline,
		fetchTimeout:   fetchTimeout,
		metrics:        cfg.Metrics,
		logger:         logger,
		now:            now,
		active:         make(map[string]*Operation),
	}
}

// RequestManualSwitch switches book to a candidate the user picked.
// The search step is skipped.
func (c *SwitchCoordinator) RequestManualSwitch(ctx context.Context, book *domain.Book, candidate domain.SearchCandidate) driving.SwitchOperation {
	return c.start(ctx, book, domain.SwitchKindManual, &candidate)
}

// RequestAutoSwitch searches every enabled source and adopts the best
// ranked candidate.
func (c *SwitchCoordinator) RequestAutoSwitch(ctx context.Context, book *domain.Book) driving.SwitchOperation {
	return c.start(ctx, book, domain.SwitchKindAuto, nil)
}

// CancelActiveSwitch cancels the live operation for bookID.
// It has no effect once the operation is fetching chapters.
func (c *SwitchCoordinator) CancelActiveSwitch(bookID string) bool {
	c.mu.Lock()
	op := c.active[bookID]
	c.mu.Unlock()
	if op == nil {
		return false
	}
	return op.Cancel()
}

// Active returns the live operation for bookID, or nil
func (c *SwitchCoordinator) Active(bookID string) driving.SwitchOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if op, ok := c.active[bookID]; ok {
		return op
	}
	return nil
}

func (c *SwitchCoordinator) start(ctx context.Context, book *domain.Book, kind domain.SwitchKind, candidate *domain.SearchCandidate) *Operation {
	op := newOperation(ctx, bookKey(book), kind, c.now)
	op.onFinish = c.observe

	if book == nil || book.ID == "" {
		op.finish(failedOutcome(fmt.Errorf("%w: book without id", domain.ErrInvalidInput)))
		return op
	}
	// Work on a copy: the caller's book is never modified.
	snapshot := *book

	c.mu.Lock()
	prev := c.active[book.ID]
	if prev != nil {
		prev.cancelWith(domain.ErrSuperseded)
	}
	c.active[book.ID] = op
	c.mu.Unlock()

	c.logger.Info("switch requested",
		"operation_id", op.ID(),
		"book_id", book.ID,
		"kind", kind,
		"source_id", book.SourceID,
	)

	go c.run(op, prev, &snapshot, candidate)
	return op
}

// run drives one operation to a terminal state
func (c *SwitchCoordinator) run(op *Operation, prev *Operation, book *domain.Book, candidate *domain.SearchCandidate) {
	defer c.release(op)

	// A predecessor that was already fetching chapters could not be
	// cancelled; let it finish so operations on one book stay serialized.
	if prev != nil {
		select {
		case <-prev.Done():
		case <-op.ctx.Done():
			op.cancelWith(context.Cause(op.ctx))
			return
		}
	}

	var (
		chosen domain.RankInput
		err    error
	)
	switch op.kind {
	case domain.SwitchKindManual:
		chosen, err = c.selectManual(op, candidate)
	default:
		chosen, err = c.selectAuto(op, book)
	}
	if err != nil {
		if op.ctx.Err() != nil {
			op.cancelWith(context.Cause(op.ctx))
			return
		}
		op.finish(failedOutcome(err))
		return
	}

	// Last point where a newer request can win.
	if !op.transition(domain.SwitchStateFetchingChapters) {
		return
	}
	op.finish(c.fetchAndComplete(op, book, chosen))
}

func (c *SwitchCoordinator) selectManual(op *Operation, candidate *domain.SearchCandidate) (domain.RankInput, error) {
	if !op.transition(domain.SwitchStateSelecting) {
		return domain.RankInput{}, context.Canceled
	}
	if candidate == nil || candidate.SourceID == "" || candidate.ResultURL == "" {
		return domain.RankInput{}, fmt.Errorf("%w: candidate needs a source and a result url", domain.ErrInvalidInput)
	}
	source, err := c.registry.Get(op.ctx, candidate.SourceID)
	if err != nil {
		return domain.RankInput{}, fmt.Errorf("resolve source %s: %w", candidate.SourceID, err)
	}
	return domain.RankInput{Source: *source, Candidate: *candidate, Match: domain.MatchExact}, nil
}

func (c *SwitchCoordinator) selectAuto(op *Operation, book *domain.Book) (domain.RankInput, error) {
	if !op.transition(domain.SwitchStateSearching) {
		return domain.RankInput{}, context.Canceled
	}

	query := book.Query()
	stream, err := c.aggregator.Search(op.ctx, query)
	if err != nil {
		return domain.RankInput{}, err
	}
	collected := stream.Collect(op.ctx, c.searchDeadline)
	if op.ctx.Err() != nil {
		return domain.RankInput{}, op.ctx.Err()
	}

	if !op.transition(domain.SwitchStateSelecting) {
		return domain.RankInput{}, context.Canceled
	}

	eligible := collected[:0]
	for _, in := range collected {
		if in.Source.ID == book.SourceID || in.Match == domain.MatchNone {
			continue
		}
		eligible = append(eligible, in)
	}

	c.logger.Debug("auto switch candidates",
		"operation_id", op.ID(),
		"sources", stream.Sources(),
		"collected", len(collected),
		"eligible", len(eligible),
	)

	if len(eligible) == 0 {
		return domain.RankInput{}, domain.ErrNoCandidatesFound
	}
	return c.weights.Rank(eligible)[0], nil
}

// fetchAndComplete runs the non-interruptible tail of an operation: fetch
// the new chapter list, store book and chapters together, then best-effort
// weight and preference bookkeeping.
func (c *SwitchCoordinator) fetchAndComplete(op *Operation, book *domain.Book, chosen domain.RankInput) *domain.SwitchOutcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(op.ctx), c.fetchTimeout)
	defer cancel()

	source := chosen.Source
	client, err := c.clients.ClientFor(&source)
	if err != nil {
		return failedOutcome(fmt.Errorf("%w: %w", domain.ErrChapterFetchFailed, err))
	}

	list, err := client.FetchChapterList(ctx, &source, chosen.Candidate.ResultURL)
	if err != nil {
		return failedOutcome(fmt.Errorf("%w: %w", domain.ErrChapterFetchFailed, err))
	}
	if list.Len() == 0 {
		return failedOutcome(fmt.Errorf("%w: %w", domain.ErrChapterFetchFailed, domain.ErrEmptyResult))
	}

	newBook := book.WithSource(source.ID, chosen.Candidate.ResultURL)
	chapters := &domain.ChapterList{
		BookID:   book.ID,
		SourceID: source.ID,
		Chapters: make([]domain.Chapter, len(list.Chapters)),
	}
	for i, ch := range list.Chapters {
		ch.Index = i
		chapters.Chapters[i] = ch
	}

	if c.books != nil {
		if err := c.books.ReplaceSource(ctx, newBook, chapters); err != nil {
			return failedOutcome(fmt.Errorf("replace book source: %w", err))
		}
		// progress saved while the switch ran is kept by the store
		if stored, err := c.books.Get(ctx, book.ID); err == nil {
			newBook = stored
		} else {
			c.logger.Warn("failed to reload switched book",
				"operation_id", op.ID(),
				"book_id", book.ID,
				"error", err,
			)
		}
	}

	c.bookkeeping(op, book, source.ID)

	return &domain.SwitchOutcome{
		State:            domain.SwitchStateCompleted,
		Book:             newBook,
		Chapters:         chapters,
		SuggestedChapter: chapters.SuggestChapter(newBook.DurChapter, newBook.DurChapterTitle),
	}
}

// bookkeeping applies the stale-switch penalty to the source being left,
// the selection bonus to the new one, and remembers the new choice.
// Failures are logged and never change the outcome.
func (c *SwitchCoordinator) bookkeeping(op *Operation, book *domain.Book, newSourceID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(op.ctx), bookkeepingTimeout)
	defer cancel()

	now := c.now()
	logger := c.logger.With("operation_id", op.ID(), "book_id", book.ID)

	if _, err := c.preferences.PenalizeIfStale(ctx, book.Title, book.SourceID, now); err != nil {
		logger.Warn("stale switch penalty failed", "source_id", book.SourceID, "error", err)
	}
	if _, err := c.registry.Adjust(ctx, newSourceID, c.weights.SelectionBonus(), WeightReasonSelection); err != nil {
		logger.Warn("selection bonus failed", "source_id", newSourceID, "error", err)
	}
	if err := c.preferences.Remember(ctx, book.Title, newSourceID, now); err != nil {
		logger.Warn("remember source choice failed", "source_id", newSourceID, "error", err)
	}
}

// release forgets op if it is still the live operation of its book
func (c *SwitchCoordinator) release(op *Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active[op.bookID] == op {
		delete(c.active, op.bookID)
	}
}

func (c *SwitchCoordinator) observe(outcome *domain.SwitchOutcome) {
	c.metrics.ObserveSwitch(string(outcome.Kind), string(outcome.State))

	logger := c.logger.With(
		"operation_id", outcome.OperationID,
		"book_id", outcome.BookID,
		"kind", outcome.Kind,
		"state", outcome.State,
	)
	switch outcome.State {
	case domain.SwitchStateCompleted:
		logger.Info("switch completed", "source_id", outcome.Book.SourceID, "chapters", outcome.Chapters.Len())
	case domain.SwitchStateCancelled:
		logger.Info("switch cancelled", "reason", outcome.Reason)
	default:
		logger.Warn("switch failed", "reason", outcome.Reason)
	}
}

func failedOutcome(err error) *domain.SwitchOutcome {
	reason := err.Error()
	if errors.Is(err, domain.ErrNoCandidatesFound) {
		reason = domain.ErrNoCandidatesFound.Error()
	}
	return &domain.SwitchOutcome{
		State:  domain.SwitchStateFailed,
		Reason: reason,
		Err:    err,
	}
}

func bookKey(book *domain.Book) string {
	if book == nil {
		return ""
	}
	return book.ID
}
