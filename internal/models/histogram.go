package models

import "sort"

// SkipReason labels why a candidate was rejected or skipped. Reasons are
// aggregated into a histogram instead of being raised as errors.
type SkipReason string

const (
	SkipForeignListing      SkipReason = "foreign_listing"
	SkipOutsideUniverse     SkipReason = "outside_universe"
	SkipUnparsableSurprise  SkipReason = "unparsable_surprise"
	SkipBelowMinSurprise    SkipReason = "below_min_surprise"
	SkipNonPositiveEPS      SkipReason = "non_positive_eps"
	SkipNoPriceData         SkipReason = "no_price_data"
	SkipMissingTradeDay     SkipReason = "missing_trade_day"
	SkipInsufficientHistory SkipReason = "insufficient_history"
	SkipWeakPreEarnings     SkipReason = "weak_pre_earnings_trend"
	SkipNegativeGap         SkipReason = "negative_gap"
	SkipGapTooLarge         SkipReason = "gap_too_large"
	SkipLowPrice            SkipReason = "low_price"
	SkipLowVolume           SkipReason = "low_volume"
	SkipFundamentalScreen   SkipReason = "fundamental_screen"
	SkipZeroShares          SkipReason = "zero_shares"
	SkipMarginLimit         SkipReason = "margin_limit"
	SkipRiskGate            SkipReason = "risk_gate"
)

// ReasonHistogram counts skip reasons for observability.
type ReasonHistogram struct {
	counts map[SkipReason]int
}

// NewReasonHistogram returns an empty histogram.
func NewReasonHistogram() *ReasonHistogram {
	return &ReasonHistogram{counts: make(map[SkipReason]int)}
}

// Add records one occurrence of the reason.
func (h *ReasonHistogram) Add(reason SkipReason) {
	h.counts[reason]++
}

// Count returns the number of occurrences recorded for the reason.
func (h *ReasonHistogram) Count(reason SkipReason) int {
	return h.counts[reason]
}

// Total returns the number of recorded skips.
func (h *ReasonHistogram) Total() int {
	total := 0
	for _, n := range h.counts {
		total += n
	}
	return total
}

// Merge adds all counts from other into h.
func (h *ReasonHistogram) Merge(other *ReasonHistogram) {
	if other == nil {
		return
	}
	for reason, n := range other.counts {
		h.counts[reason] += n
	}
}

// Entry is a single histogram bucket.
type Entry struct {
	Reason SkipReason
	Count  int
}

// Entries returns the buckets sorted by count descending, ties broken by
// reason name, so output is deterministic.
func (h *ReasonHistogram) Entries() []Entry {
	entries := make([]Entry, 0, len(h.counts))
	for reason, n := range h.counts {
		entries = append(entries, Entry{Reason: reason, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Reason < entries[j].Reason
	})
	return entries
}
