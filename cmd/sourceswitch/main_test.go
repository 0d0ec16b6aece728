package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/castn/sourceswitch/internal/core/domain"
)

func TestParseSources(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		defs, err := parseSources([]byte(`{"id":"a","name":"A","protocol":"html"}`))
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "a", defs[0].ID)
		assert.Equal(t, domain.SourceProtocolHTML, defs[0].Protocol)
	})

	t.Run("array", func(t *testing.T) {
		defs, err := parseSources([]byte("  \n[{\"id\":\"a\"},{\"id\":\"b\",\"protocol\":\"json\"}]"))
		require.NoError(t, err)
		require.Len(t, defs, 2)
		assert.Equal(t, "b", defs[1].ID)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseSources([]byte(`{not json`))
		assert.ErrorContains(t, err, "failed to parse source JSON")
	})
}

func TestPrintSources(t *testing.T) {
	var buf bytes.Buffer
	err := printSources(&buf, []*domain.ContentSource{
		{ID: "a", Name: "Alpha", Protocol: domain.SourceProtocolHTML, Enabled: true, Weight: 12},
		{ID: "b", Name: "Beta", Protocol: domain.SourceProtocolJSON, Weight: -449, Groups: []string{"broken"}},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Alpha")
	assert.Contains(t, out, "-449")
	assert.Contains(t, out, "broken")
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printCandidates(&buf, nil))
	assert.Equal(t, "no candidates found\n", buf.String())

	buf.Reset()
	err := printCandidates(&buf, []domain.RankInput{{
		Source:    domain.ContentSource{ID: "b", Weight: 12},
		Candidate: domain.SearchCandidate{Title: "The Long Road", ResultURL: "https://b.example.com/book/1"},
		Match:     domain.MatchExact,
	}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "exact")
	assert.Contains(t, buf.String(), "https://b.example.com/book/1")
}

// fakeOperation replays a fixed sequence of states
type fakeOperation struct {
	events  chan domain.SwitchEvent
	done    chan struct{}
	outcome *domain.SwitchOutcome
}

func newFakeOperation(outcome *domain.SwitchOutcome, states ...domain.SwitchState) *fakeOperation {
	op := &fakeOperation{
		events:  make(chan domain.SwitchEvent, len(states)),
		done:    make(chan struct{}),
		outcome: outcome,
	}
	for _, s := range states {
		op.events <- domain.SwitchEvent{State: s, At: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	}
	close(op.events)
	close(op.done)
	return op
}

func (f *fakeOperation) ID() string { return "op-1" }
func (f *fakeOperation) BookID() string { return f.outcome.BookID }
func (f *fakeOperation) Kind() domain.SwitchKind { return f.outcome.Kind }
func (f *fakeOperation) State() domain.SwitchState { return f.outcome.State }
func (f *fakeOperation) Events() <-chan domain.SwitchEvent { return f.events }
func (f *fakeOperation) Done() <-chan struct{} { return f.done }
func (f *fakeOperation) Wait(context.Context) (*domain.SwitchOutcome, error) { return f.outcome, nil }

func TestFollowSwitch_Completed(t *testing.T) {
	outcome := &domain.SwitchOutcome{
		BookID:           "book-1",
		State:            domain.SwitchStateCompleted,
		Book:             &domain.Book{ID: "book-1", SourceID: "b"},
		Chapters:         &domain.ChapterList{Chapters: make([]domain.Chapter, 3)},
		SuggestedChapter: 1,
	}
	op := newFakeOperation(outcome,
		domain.SwitchStateIdle, domain.SwitchStateSearching, domain.SwitchStateSelecting,
		domain.SwitchStateFetchingChapters, domain.SwitchStateCompleted)

	var buf bytes.Buffer
	require.NoError(t, followSwitch(&buf, op))

	out := buf.String()
	assert.Contains(t, out, "12:00:00.000  searching")
	assert.Contains(t, out, "book book-1 now on b (3 chapters, resume at chapter 2)")
}

func TestFollowSwitch_Failed(t *testing.T) {
	outcome := &domain.SwitchOutcome{
		BookID: "book-1",
		State:  domain.SwitchStateFailed,
		Reason: domain.ErrNoCandidatesFound.Error(),
	}
	op := newFakeOperation(outcome, domain.SwitchStateIdle, domain.SwitchStateFailed)

	var buf bytes.Buffer
	err := followSwitch(&buf, op)
	assert.EqualError(t, err, "switch failed: no alternative source found")
}
