// Package triage computes capacity suggestions and message distribution
// previews for the creator inbox. All functions are pure and safe to call
// concurrently.
package triage

import (
	"math"

	"github.com/metamonk/yipyap/internal/errors"
)

// Capacity bounds for the daily deep-attention budget.
const (
	MinCapacity = 5
	MaxCapacity = 20
)

const (
	// suggestionRate is the fraction of average daily volume recommended
	// for personal replies.
	suggestionRate = 0.18

	// minutesPerReply is the assumed creator time per deep-attention reply.
	minutesPerReply = 2

	// DefaultFAQRate is the fraction of daily volume assumed auto-resolvable
	// via FAQ matching when the caller does not override it.
	DefaultFAQRate = 0.15
)

// Distribution partitions a day's messages into attention buckets.
type Distribution struct {
	// Deep is the number of messages receiving personal attention.
	Deep int `json:"deep"`

	// FAQ is the number of messages auto-handled via FAQ matching.
	FAQ int `json:"faq"`

	// Archived is the remainder receiving no action. Floors at zero, so
	// Deep+FAQ may exceed the total when capacity and FAQ rate overlap
	// heavily on a small volume.
	Archived int `json:"archived"`
}

// SuggestCapacity derives a recommended daily capacity from average daily
// volume. Negative input is treated as zero. The result is clamped to
// [MinCapacity, MaxCapacity] and is monotonic non-decreasing until the
// upper clamp.
func SuggestCapacity(averageDailyMessages float64) int {
	if averageDailyMessages < 0 {
		averageDailyMessages = 0
	}

	raw := roundHalfUp(averageDailyMessages * suggestionRate)
	if raw < MinCapacity {
		return MinCapacity
	}
	if raw > MaxCapacity {
		return MaxCapacity
	}
	return raw
}

// CalculateTimeCommitment returns the estimated minutes of creator time for
// a given capacity, at minutesPerReply per deep-attention reply.
func CalculateTimeCommitment(capacity int) int {
	return capacity * minutesPerReply
}

// PreviewDistribution computes the deep/faq/archived split for a day's
// volume under the given capacity and FAQ auto-handle rate.
// Inputs outside their documented domains return INVALID_REQUEST rather
// than producing negative buckets.
func PreviewDistribution(capacity, totalMessages int, faqRate float64) (*Distribution, error) {
	if capacity < 0 {
		return nil, errors.NewInvalidRequest("capacity must be >= 0")
	}
	if totalMessages < 0 {
		return nil, errors.NewInvalidRequest("total_messages must be >= 0")
	}
	if faqRate < 0 || faqRate > 1 {
		return nil, errors.NewInvalidRequest("faq_rate must be between 0 and 1")
	}

	deep := capacity
	if totalMessages < deep {
		deep = totalMessages
	}

	faq := roundHalfUp(float64(totalMessages) * faqRate)

	archived := totalMessages - deep - faq
	if archived < 0 {
		archived = 0
	}

	return &Distribution{
		Deep:     deep,
		FAQ:      faq,
		Archived: archived,
	}, nil
}

// roundHalfUp rounds to the nearest integer with ties going up.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
