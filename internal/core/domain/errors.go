package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceUnavailable indicates a single source probe failed.
	// Swallowed by the search aggregator, never surfaced as a switch failure.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoCandidatesFound indicates an automatic switch found no replacement
	ErrNoCandidatesFound = errors.New("no alternative source found")

	// ErrChapterFetchFailed indicates the chosen source's chapter list could not be retrieved
	ErrChapterFetchFailed = errors.New("chapter fetch failed")

	// ErrSuperseded indicates a switch was cancelled by a newer request for the same book
	ErrSuperseded = errors.New("superseded by a newer switch")

	// ErrWeightPersistenceFailed indicates best-effort weight bookkeeping failed
	ErrWeightPersistenceFailed = errors.New("weight persistence failed")

	// ErrEmptyResult indicates a source answered with nothing usable
	ErrEmptyResult = errors.New("empty result")

	// ErrTimeout indicates a source did not answer in time
	ErrTimeout = errors.New("timeout")

	// ErrNetwork indicates a transport level failure talking to a source
	ErrNetwork = errors.New("network error")

	// ErrParse indicates a source response could not be parsed
	ErrParse = errors.New("parse error")

	// ErrUnsupportedProtocol indicates no client exists for a source protocol
	ErrUnsupportedProtocol = errors.New("unsupported source protocol")
)
