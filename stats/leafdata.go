package stats

import (
	"fmt"

	"github.com/katalvlaran/seldonian-core/catalog"
	"github.com/katalvlaran/seldonian-core/dataset"
	"github.com/katalvlaran/seldonian-core/model"
)

// RLParams carries the reinforcement-learning-only inputs PrepareLeafData
// needs: the discount factor and the return range used to normalize
// per-episode discounted returns into [0,1] (spec §4.3).
type RLParams struct {
	Gamma     float64
	MinReturn float64
	MaxReturn float64
	// EpisodeIndexColumn and RewardColumn name the columns identifying an
	// episode and its per-step reward in ds.Meta.Columns.
	EpisodeIndexColumn string
	RewardColumn       string
}

// PrepareLeafData masks ds by conditionalColumns (supervised) or groups it
// by episode (RL), and assembles the model.Data a statistic evaluator
// needs, along with the datasize the confidence bound should use for this
// branch (spec §4.3's candidate-selection vs safety-test datasize rules).
// measure is consulted only to special-case pair_difference, whose two
// groups must both survive preparation (MaskRows would otherwise AND-filter
// away whichever group doesn't match every conditional column).
func PrepareLeafData(measure string, ds *dataset.Dataset, conditionalColumns []string, regime dataset.Regime, branch catalog.Branch, nSafety int, rl RLParams) (*model.Data, int, error) {
	switch regime {
	case dataset.RegimeSupervised:
		return prepareSupervised(measure, ds, conditionalColumns, branch, nSafety)
	case dataset.RegimeRL:
		return prepareRL(ds, branch, nSafety, rl)
	default:
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedRegime, regime)
	}
}

func prepareSupervised(measure string, ds *dataset.Dataset, conditionalColumns []string, branch catalog.Branch, nSafety int) (*model.Data, int, error) {
	// pair_difference partitions by its conditioning column's value rather
	// than masking rows out, since the statistic needs both groups present
	// (nodes.py's MEDCustomBaseNode.precalculate_data: "male_mask = X.M==1",
	// never a filtered-down dataframe).
	var groupIndex []int
	var masked [][]float64
	if catalog.Measure(measure) == catalog.PairDifference && len(conditionalColumns) > 0 {
		groupCol, ok := ds.ColumnIndex(conditionalColumns[0])
		if !ok {
			return nil, 0, fmt.Errorf("%w: %q", dataset.ErrUnknownColumn, conditionalColumns[0])
		}
		masked = ds.Rows
		groupIndex = make([]int, len(masked))
		for i, row := range masked {
			if row[groupCol] != 1 {
				groupIndex[i] = 1
			}
		}
	} else {
		var err error
		masked, err = ds.MaskRows(conditionalColumns)
		if err != nil {
			return nil, 0, err
		}
	}

	var datasize int
	if branch == catalog.BranchCandidate {
		fracMasked := float64(len(masked)) / float64(ds.NRows())
		datasize = int(float64(nSafety)*fracMasked + 0.5) // round-half-up, matches round()
	} else {
		datasize = len(masked)
	}

	labelIdx, _ := ds.ColumnIndex(ds.Meta.LabelColumn)
	sensitiveIdx := make(map[int]struct{}, len(ds.Meta.SensitiveColumns))
	if !ds.IncludeSensitiveColumns {
		for _, c := range ds.Meta.SensitiveColumns {
			if idx, ok := ds.ColumnIndex(c); ok {
				sensitiveIdx[idx] = struct{}{}
			}
		}
	}

	labels := make([]float64, len(masked))
	features := make([][]float64, len(masked))
	for i, row := range masked {
		labels[i] = row[labelIdx]
		feat := make([]float64, 0, len(row))
		if ds.IncludeIntercept {
			feat = append(feat, 1.0)
		}
		for j, v := range row {
			if j == labelIdx {
				continue
			}
			if _, dropped := sensitiveIdx[j]; dropped {
				continue
			}
			feat = append(feat, v)
		}
		features[i] = feat
	}

	return &model.Data{Features: features, Labels: labels, GroupIndex: groupIndex}, datasize, nil
}

func prepareRL(ds *dataset.Dataset, branch catalog.Branch, nSafety int, rl RLParams) (*model.Data, int, error) {
	epIdx, ok := ds.ColumnIndex(rl.EpisodeIndexColumn)
	if !ok {
		return nil, 0, fmt.Errorf("%w: episode index column %q", dataset.ErrUnknownColumn, rl.EpisodeIndexColumn)
	}
	rewardIdx, ok := ds.ColumnIndex(rl.RewardColumn)
	if !ok {
		return nil, 0, fmt.Errorf("%w: reward column %q", dataset.ErrUnknownColumn, rl.RewardColumn)
	}

	var datasize int
	if branch == catalog.BranchCandidate {
		datasize = nSafety
	} else {
		datasize = ds.NRows()
	}

	// Group contiguous rows by episode index and compute the discounted
	// return per episode, normalized into [0,1].
	var sums []float64
	var curSum float64
	var curEpisode float64
	var curGammaPow float64
	started := false
	for _, row := range ds.Rows {
		ep := row[epIdx]
		if !started || ep != curEpisode {
			if started {
				sums = append(sums, curSum)
			}
			curSum = 0
			curGammaPow = 1
			curEpisode = ep
			started = true
		}
		curSum += curGammaPow * row[rewardIdx]
		curGammaPow *= rl.Gamma
	}
	if started {
		sums = append(sums, curSum)
	}

	span := rl.MaxReturn - rl.MinReturn
	normalized := make([]float64, len(sums))
	for i, s := range sums {
		normalized[i] = (s - rl.MinReturn) / span
	}

	return &model.Data{EpisodeRewardSums: normalized}, datasize, nil
}
