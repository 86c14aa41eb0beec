// Attribution Measurement Backend
// SPDX-License-Identifier: AGPL-3.0-or-later

package attribution

import "time"

// SaveImpression validates and records an impression (component 4.1).
// When the engine is disabled (§4.6), the call still validates its
// input but performs no write and reports Saved: false.
func (e *Engine) SaveImpression(in SaveImpressionInput) (SaveImpressionResult, error) {
	const op = "SaveImpression"

	e.mu.Lock()
	defer e.mu.Unlock()

	impressionSite, err := e.canonicalize(op, in.ImpressionSite)
	if err != nil {
		return SaveImpressionResult{}, err
	}

	var intermediarySite Site
	if in.IntermediarySite != "" {
		intermediarySite, err = e.canonicalize(op, in.IntermediarySite)
		if err != nil {
			return SaveImpressionResult{}, err
		}
	}

	conversionSites, err := e.canonicalizeSet(op, in.ConversionSites, e.cfg.MaxConversionSitesPerImpression)
	if err != nil {
		return SaveImpressionResult{}, err
	}
	conversionCallers, err := e.canonicalizeSet(op, in.ConversionCallers, e.cfg.MaxConversionCallersPerImpression)
	if err != nil {
		return SaveImpressionResult{}, err
	}

	matchValue := e.cfg.DefaultMatchValue
	if in.MatchValue != nil {
		matchValue = *in.MatchValue
	}

	timestamp := e.clock.Now()
	if in.Timestamp != nil {
		timestamp = *in.Timestamp
	}

	lifetime := time.Duration(e.cfg.DefaultLifetimeDays) * 24 * time.Hour
	if in.Lifetime != nil {
		if *in.Lifetime < 0 {
			return SaveImpressionResult{}, outOfRange(op, "lifetime %s must not be negative", *in.Lifetime)
		}
		lifetime = *in.Lifetime
	}

	priority := e.cfg.DefaultPriority
	if in.Priority != nil {
		priority = *in.Priority
	}

	histogramIndex := 0
	if in.HistogramIndex != nil {
		if *in.HistogramIndex < 0 || *in.HistogramIndex >= e.cfg.MaxHistogramSize {
			return SaveImpressionResult{}, outOfRange(op, "histogram index %d must be within [0, %d)", *in.HistogramIndex, e.cfg.MaxHistogramSize)
		}
		histogramIndex = *in.HistogramIndex
	}

	if !e.state.Enabled {
		return SaveImpressionResult{Saved: false}, nil
	}

	e.store.append(&Impression{
		ImpressionSite:    impressionSite,
		IntermediarySite:  intermediarySite,
		ConversionSites:   conversionSites,
		ConversionCallers: conversionCallers,
		MatchValue:        matchValue,
		Timestamp:         timestamp,
		Lifetime:          lifetime,
		HistogramIndex:    histogramIndex,
		Priority:          priority,
	})

	return SaveImpressionResult{Saved: true}, nil
}

// MeasureConversion matches impressions against in, fairly allocates the
// reported value among the survivors, charges the privacy budget ledger,
// and returns an encrypted histogram (component 4.4).
func (e *Engine) MeasureConversion(in MeasureConversionInput) (MeasureConversionResult, error) {
	const op = "MeasureConversion"

	e.mu.Lock()
	defer e.mu.Unlock()

	topLevelSite, err := e.canonicalize(op, in.TopLevelSite)
	if err != nil {
		return MeasureConversionResult{}, err
	}

	var intermediarySite Site
	if in.IntermediarySite != "" {
		intermediarySite, err = e.canonicalize(op, in.IntermediarySite)
		if err != nil {
			return MeasureConversionResult{}, err
		}
	}

	impressionSites, err := e.canonicalizeSet(op, in.ImpressionSites, e.cfg.MaxConversionSitesPerImpression)
	if err != nil {
		return MeasureConversionResult{}, err
	}
	impressionCallers, err := e.canonicalizeSet(op, in.ImpressionCallers, e.cfg.MaxConversionCallersPerImpression)
	if err != nil {
		return MeasureConversionResult{}, err
	}

	var matchValues map[uint64]struct{}
	if len(in.MatchValues) > 0 {
		matchValues = make(map[uint64]struct{}, len(in.MatchValues))
		for _, v := range in.MatchValues {
			matchValues[v] = struct{}{}
		}
	}

	lookback := e.maxLookback()
	if in.Lookback != nil {
		if *in.Lookback < 0 || *in.Lookback > e.maxLookback() {
			return MeasureConversionResult{}, outOfRange(op, "lookback %s must be within [0, %s]", *in.Lookback, e.maxLookback())
		}
		lookback = *in.Lookback
	}

	if len(in.Credit) == 0 {
		return MeasureConversionResult{}, outOfRange(op, "credit vector must not be empty")
	}
	if len(in.Credit) > e.cfg.MaxCreditSize {
		return MeasureConversionResult{}, outOfRange(op, "credit vector of size %d exceeds limit %d", len(in.Credit), e.cfg.MaxCreditSize)
	}
	for i, c := range in.Credit {
		if c <= 0 {
			return MeasureConversionResult{}, outOfRange(op, "credit[%d] = %v must be positive", i, c)
		}
	}

	value := e.cfg.DefaultValue
	if in.Value != nil {
		value = *in.Value
	}
	maxValue := e.cfg.DefaultMaxValue
	if in.MaxValue != nil {
		maxValue = *in.MaxValue
	}
	if value < 0 || value > maxValue {
		return MeasureConversionResult{}, outOfRange(op, "value %d must be within [0, maxValue=%d]", value, maxValue)
	}

	epsilon := e.cfg.DefaultEpsilon
	if in.Epsilon != nil {
		epsilon = *in.Epsilon
	}
	if epsilon <= 0 {
		return MeasureConversionResult{}, outOfRange(op, "epsilon %v must be positive", epsilon)
	}

	if _, ok := e.aggs[in.AggregationService]; !ok {
		return MeasureConversionResult{}, unknownReference(op, "aggregation service %q is not configured", in.AggregationService)
	}

	if in.HistogramSize < 1 || in.HistogramSize > e.cfg.MaxHistogramSize {
		return MeasureConversionResult{}, outOfRange(op, "histogram_size %d must be within [1, %d]", in.HistogramSize, e.cfg.MaxHistogramSize)
	}

	now := e.clock.Now()
	query := conversionQuery{
		lookback:          lookback,
		impressionSites:   impressionSites,
		impressionCallers: impressionCallers,
		matchValues:       matchValues,
	}

	if !e.state.Enabled {
		return e.finalizeConversion(nil, false, in.HistogramSize)
	}

	// Step A's regime gate (§4.4) compares the current epoch against
	// the epoch of now-lookback using this query's own lookback, not
	// the engine's configured maximum: a conversion whose lookback is
	// confined to the current epoch is single-epoch even when
	// max_lookback_days would straddle several. start_epoch (below) is
	// a different quantity — the multi-epoch sweep's lower bound — and
	// always uses max_lookback plus the post-clear quarantine (§4.2).
	// Do not conflate the two: see the worst-case-vs-actual sensitivity
	// asymmetry this gate controls (§9).
	cur := e.oracle.epochIndex(topLevelSite, now)
	queryEarliest := e.oracle.epochIndex(topLevelSite, now.Add(-lookback))

	var pool []*Impression
	budgetExhausted := false

	if cur == queryEarliest {
		e.store.withItems(func(items []*Impression) {
			pool = append(pool, matchEpoch(items, topLevelSite, intermediarySite, cur, now, query, e.oracle)...)
		})

		rankedPool, rankedCredit := rankAndTruncate(pool, append([]float64(nil), in.Credit...))
		credited, allocErr := e.allocateOrEmpty(rankedCredit, value)
		if allocErr != nil {
			return MeasureConversionResult{}, allocErr
		}

		histogram := e.buildHistogram(rankedPool, credited, in.HistogramSize)
		l1 := sumAbs(histogram)

		if !e.ledger.deduct(topLevelSite, cur, epsilon, value, maxValue, &l1) {
			budgetExhausted = true
			histogram = make([]int64, in.HistogramSize)
		}

		return e.finalizeConversion(histogram, budgetExhausted, in.HistogramSize)
	}

	sweepStart := e.oracle.startEpoch(topLevelSite, now, e.maxLookback(), e.state.LastBrowsingHistoryClear)
	for epoch := sweepStart; epoch <= cur; epoch++ {
		var epochMatches []*Impression
		e.store.withItems(func(items []*Impression) {
			epochMatches = matchEpoch(items, topLevelSite, intermediarySite, epoch, now, query, e.oracle)
		})
		if len(epochMatches) == 0 {
			continue
		}
		if e.ledger.deduct(topLevelSite, epoch, epsilon, value, maxValue, nil) {
			pool = append(pool, epochMatches...)
		}
	}

	if len(pool) == 0 {
		budgetExhausted = true
	}

	rankedPool, rankedCredit := rankAndTruncate(pool, append([]float64(nil), in.Credit...))
	credited, allocErr := e.allocateOrEmpty(rankedCredit, value)
	if allocErr != nil {
		return MeasureConversionResult{}, allocErr
	}
	histogram := e.buildHistogram(rankedPool, credited, in.HistogramSize)

	return e.finalizeConversion(histogram, budgetExhausted, in.HistogramSize)
}

// allocateOrEmpty runs fairlyAllocateCredit when there is a non-empty
// ranked pool, and returns an empty allocation (no error) when the pool
// is empty: an empty credit vector is a valid "nobody matched" outcome,
// distinct from the caller-supplied credit vector being empty (checked
// earlier in MeasureConversion).
func (e *Engine) allocateOrEmpty(credit []float64, value int64) ([]int64, error) {
	if len(credit) == 0 {
		return nil, nil
	}
	return fairlyAllocateCredit(credit, value, e.rng)
}

func (e *Engine) buildHistogram(pool []*Impression, credited []int64, size int) []int64 {
	histogram := make([]int64, size)
	for i, imp := range pool {
		if imp.HistogramIndex < 0 || imp.HistogramIndex >= len(histogram) {
			continue
		}
		histogram[imp.HistogramIndex] += credited[i]
	}
	return histogram
}

func sumAbs(histogram []int64) int64 {
	var sum int64
	for _, v := range histogram {
		if v < 0 {
			sum -= v
		} else {
			sum += v
		}
	}
	return sum
}

// finalizeConversion encrypts histogram (or a freshly zeroed vector of
// length size if nil) exactly once, per Encryptor's documented contract.
func (e *Engine) finalizeConversion(histogram []int64, budgetExhausted bool, size int) (MeasureConversionResult, error) {
	if histogram == nil {
		histogram = make([]int64, size)
	}

	report, err := e.enc.Encrypt(histogram)
	if err != nil {
		return MeasureConversionResult{}, invalidState("MeasureConversion", "encrypting histogram: %w", err)
	}

	result := MeasureConversionResult{
		EncryptedReport: report,
		BudgetExhausted: budgetExhausted,
	}
	if e.cfg.IncludeUnencryptedHistogram {
		result.Histogram = histogram
	}
	return result, nil
}
