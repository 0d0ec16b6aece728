package domain

import "time"

// PreferenceWindow is how long a confirmed source choice is remembered
const PreferenceWindow = 60 * time.Second

// PreferenceEntry remembers the last source chosen for a title.
// It is a soft hint held in memory (or a TTL'd cache), never durable state.
type PreferenceEntry struct {
	Title    string    `json:"title"`
	SourceID string    `json:"source_id"`
	ChosenAt time.Time `json:"chosen_at"`
}

// Age returns how long ago the choice was made
func (e *PreferenceEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.ChosenAt)
}

// Fresh reports whether the entry is still inside the preference window.
// An entry exactly PreferenceWindow old has expired.
func (e *PreferenceEntry) Fresh(now time.Time) bool {
	return e != nil && e.Age(now) < PreferenceWindow
}

// PreferenceKey normalizes a title into the cache key
func PreferenceKey(title string) string {
	return NormalizeText(title)
}
