package reconcile

import (
	"time"

	"MarketRadar/internal/domain"
)

// Reason explains why a verdict did not become a record.
type Reason string

const (
	ReasonIndexOutOfRange Reason = "index_out_of_range"
	ReasonNotOpportunity  Reason = "not_opportunity"
	ReasonMissingScore    Reason = "missing_score"
	ReasonBelowThreshold  Reason = "below_threshold"
	ReasonScoreOutOfRange Reason = "score_out_of_range"
)

// Scores outside LowestScore..HighestScore are dropped.
const (
	LowestScore  = 1
	HighestScore = 10
)

// Rejection is a dropped verdict, reported but never persisted.
type Rejection struct {
	Index     int
	Reason    Reason
	Score     int
	Permalink string
}

// Result splits verdicts into records to persist and rejections to report.
type Result struct {
	Records  []domain.OpportunityRecord
	Rejected []Rejection
}

// Reconciler pairs verdicts with the items of the batch that produced them.
type Reconciler struct {
	minScore int
	now      func() time.Time
}

// New returns a reconciler applying minScore; now defaults to time.Now.
func New(minScore int, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{minScore: minScore, now: now}
}

// Reconcile keeps verdict order. Anomalies are dropped per verdict and never
// abort the batch.
func (r *Reconciler) Reconcile(batch []domain.BufferedItem, verdicts []domain.Verdict) Result {
	var res Result
	for _, v := range verdicts {
		if v.Index < 0 || v.Index >= len(batch) {
			res.Rejected = append(res.Rejected, Rejection{Index: v.Index, Reason: ReasonIndexOutOfRange})
			continue
		}
		item := batch[v.Index]

		switch {
		case !v.IsOpportunity:
			res.Rejected = append(res.Rejected, Rejection{Index: v.Index, Reason: ReasonNotOpportunity, Permalink: item.Permalink})
			continue
		case v.Score == nil:
			res.Rejected = append(res.Rejected, Rejection{Index: v.Index, Reason: ReasonMissingScore, Permalink: item.Permalink})
			continue
		case *v.Score < LowestScore || *v.Score > HighestScore:
			res.Rejected = append(res.Rejected, Rejection{
				Index:     v.Index,
				Reason:    ReasonScoreOutOfRange,
				Score:     *v.Score,
				Permalink: item.Permalink,
			})
			continue
		case *v.Score < r.minScore:
			res.Rejected = append(res.Rejected, Rejection{
				Index:     v.Index,
				Reason:    ReasonBelowThreshold,
				Score:     *v.Score,
				Permalink: item.Permalink,
			})
			continue
		}

		res.Records = append(res.Records, domain.OpportunityRecord{
			Timestamp:         r.now(),
			Score:             *v.Score,
			PainPoint:         v.PainPoint,
			SuggestedSolution: v.SuggestedSolution,
			TargetAudience:    v.TargetAudience,
			Permalink:         item.Permalink,
		})
	}
	return res
}
