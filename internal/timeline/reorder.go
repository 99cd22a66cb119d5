package timeline

import "github.com/starford/fractal/internal/models"

// ReorderComplete is the acknowledgment shown to the user after a reorder.
const ReorderComplete = "ATOMIC REORDERING SEQUENCE COMPLETE."

// Shuffler is the random source used by Reorder. *math/rand/v2.Rand
// satisfies it.
type Shuffler interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// ReorderResult describes a completed reorder.
type ReorderResult struct {
	ShuffledTracks []string `json:"shuffled_tracks"`
	Message        string   `json:"message"`
}

// Shuffle permutes items in place with the Fisher-Yates algorithm. Every
// permutation is equally likely when rng is uniform.
func Shuffle[T any](items []T, rng Shuffler) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// Repack lays clips end to end from 0 in slice order.
func Repack(items []models.Clip) {
	var start float64
	for i := range items {
		items[i].StartTime = start
		start += items[i].Duration
	}
}

// Reorder shuffles every unlocked audio track and repacks it. The input is
// not modified; the returned slice is a deep copy together with the ids of
// the tracks that were shuffled.
func Reorder(tracks []models.Track, rng Shuffler) ([]models.Track, []string) {
	out := cloneTracks(tracks)
	shuffled := []string{}
	for i := range out {
		t := &out[i]
		if t.Kind != models.KindAudio || t.Locked {
			continue
		}
		Shuffle(t.Items, rng)
		Repack(t.Items)
		shuffled = append(shuffled, t.ID)
	}
	return out, shuffled
}

// Reorder applies the bulk reorder to the aggregate. The new track list
// replaces the old one in a single assignment. Repacking never lengthens a
// track, so the duration is left alone.
func (tl *Timeline) Reorder(rng Shuffler) ReorderResult {
	next, shuffled := Reorder(tl.tracks, rng)
	tl.tracks = next
	return ReorderResult{ShuffledTracks: shuffled, Message: ReorderComplete}
}
