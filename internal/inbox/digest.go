package inbox

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/metamonk/yipyap/internal/errors"
	"github.com/metamonk/yipyap/internal/triage"
)

// Digest is the daily triage of a day's messages into attention buckets.
// Deep holds the messages surfaced for personal replies ("Meaningful 10"),
// FAQ the ones handed to auto-response, Archived the rest.
type Digest struct {
	GeneratedAt  int64               `json:"generated_at"`
	Capacity     int                 `json:"capacity"`
	TimeMinutes  int                 `json:"time_minutes"`
	Distribution triage.Distribution `json:"distribution"`
	Deep         []Message           `json:"deep"`
	FAQ          []Message           `json:"faq"`
	Archived     []Message           `json:"archived"`
}

// DigestInput contains parameters for the BuildFromStore operation.
type DigestInput struct {
	// Capacity is the creator's daily reply budget. When <= 0 a capacity
	// is suggested from the window's volume.
	Capacity int

	// FAQRate overrides the FAQ auto-handle rate. Nil uses the default;
	// an explicit 0 disables the faq bucket.
	FAQRate *float64

	// Since bounds the window; 0 means the last 24 hours.
	Since int64
}

// BuildFromStore loads the window's messages and builds a digest.
func BuildFromStore(store Store, input DigestInput) (*Digest, error) {
	since := input.Since
	if since == 0 {
		since = time.Now().Add(-24 * time.Hour).Unix()
	}

	messages, err := store.ListSince(since)
	if err != nil {
		return nil, err
	}

	capacity := input.Capacity
	if capacity <= 0 {
		capacity = triage.SuggestCapacity(float64(len(messages)))
	}

	rate := triage.DefaultFAQRate
	if input.FAQRate != nil {
		rate = *input.FAQRate
	}

	return BuildDigest(messages, capacity, rate)
}

// BuildDigest partitions messages into attention buckets sized by the
// triage distribution. Crisis-flagged messages fill the deep bucket
// first, then the least FAQ-like (most personal) messages; the faq
// bucket takes the highest-confidence FAQ matches from the remainder.
// The rate is taken as given; 0 is a valid rate that empties the faq
// bucket.
func BuildDigest(messages []Message, capacity int, faqRate float64) (*Digest, error) {
	dist, err := triage.PreviewDistribution(capacity, len(messages), faqRate)
	if err != nil {
		return nil, err
	}

	ranked := make([]Message, len(messages))
	copy(ranked, messages)

	// Deep ordering: crisis first, then ascending FAQ confidence, oldest
	// first on ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Crisis != ranked[j].Crisis {
			return ranked[i].Crisis
		}
		if ranked[i].FAQConfidence != ranked[j].FAQConfidence {
			return ranked[i].FAQConfidence < ranked[j].FAQConfidence
		}
		return ranked[i].ReceivedAt < ranked[j].ReceivedAt
	})

	deep := ranked[:dist.Deep]
	rest := ranked[dist.Deep:]

	// FAQ ordering: most FAQ-like of whatever deep did not take.
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].FAQConfidence > rest[j].FAQConfidence
	})

	faqCount := dist.FAQ
	if faqCount > len(rest) {
		faqCount = len(rest)
	}
	faq := rest[:faqCount]
	archived := rest[faqCount:]

	return &Digest{
		GeneratedAt:  time.Now().Unix(),
		Capacity:     capacity,
		TimeMinutes:  triage.CalculateTimeCommitment(dist.Deep),
		Distribution: *dist,
		Deep:         append([]Message{}, deep...),
		FAQ:          append([]Message{}, faq...),
		Archived:     append([]Message{}, archived...),
	}, nil
}

// RenderMarkdown formats the digest as markdown for delivery.
func (d *Digest) RenderMarkdown() string {
	var b strings.Builder

	date := time.Unix(d.GeneratedAt, 0).Format("2006-01-02")
	fmt.Fprintf(&b, "# Your Meaningful %d — %s\n\n", len(d.Deep), date)
	total := len(d.Deep) + len(d.FAQ) + len(d.Archived)
	fmt.Fprintf(&b, "%d messages today. %d picked for you (~%d min), %d auto-answered, %d archived.\n\n",
		total, len(d.Deep), d.TimeMinutes, len(d.FAQ), len(d.Archived))

	b.WriteString("## Reply personally\n\n")
	if len(d.Deep) == 0 {
		b.WriteString("Nothing needs you today.\n\n")
	}
	for _, m := range d.Deep {
		marker := ""
		if m.Crisis {
			marker = " **[needs care]**"
		}
		fmt.Fprintf(&b, "- %s%s: %s\n", m.SenderID, marker, excerpt(m.Body, 120))
	}
	if len(d.Deep) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Auto-answered (%d)\n\n", len(d.FAQ))
	for _, m := range d.FAQ {
		fmt.Fprintf(&b, "- %s: %s\n", m.SenderID, excerpt(m.Body, 80))
	}
	if len(d.FAQ) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Archived (%d)\n", len(d.Archived))

	return b.String()
}

// RenderHTML converts the markdown digest to HTML.
func (d *Digest) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(d.RenderMarkdown()), &buf); err != nil {
		return "", errors.NewInternal(err)
	}
	return buf.String(), nil
}

// excerpt truncates s to max runes, appending an ellipsis when cut.
func excerpt(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
