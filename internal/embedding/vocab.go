package embedding

import (
	"math"
	"slices"
	"sort"

	"github.com/ZanzyTHEbar/friendlink-go/internal/apptype"
)

// vocabulary holds the ids kept for training, ordered by count desc then id.
type vocabulary struct {
	ids    []apptype.NodeID
	counts []int64
	index  map[apptype.NodeID]int32
	total  int64
}

func buildVocabulary(corpus apptype.Corpus, minCount int) *vocabulary {
	counts := make(map[apptype.NodeID]int64)
	for _, w := range corpus {
		for _, id := range w {
			counts[id]++
		}
	}
	ids := make([]apptype.NodeID, 0, len(counts))
	for id, c := range counts {
		if c >= int64(minCount) {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b apptype.NodeID) int {
		if ca, cb := counts[a], counts[b]; ca != cb {
			if ca > cb {
				return -1
			}
			return 1
		}
		return a.Compare(b)
	})

	v := &vocabulary{
		ids:    ids,
		counts: make([]int64, len(ids)),
		index:  make(map[apptype.NodeID]int32, len(ids)),
	}
	for i, id := range ids {
		v.index[id] = int32(i)
		v.counts[i] = counts[id]
		v.total += counts[id]
	}
	return v
}

func (v *vocabulary) size() int { return len(v.ids) }

// encode maps walks to vocabulary indices, dropping out-of-vocabulary tokens.
func (v *vocabulary) encode(corpus apptype.Corpus) ([][]int32, int64) {
	out := make([][]int32, 0, len(corpus))
	var tokens int64
	for _, w := range corpus {
		sent := make([]int32, 0, len(w))
		for _, id := range w {
			if i, ok := v.index[id]; ok {
				sent = append(sent, i)
			}
		}
		if len(sent) > 0 {
			out = append(out, sent)
			tokens += int64(len(sent))
		}
	}
	return out, tokens
}

// keepProbabilities returns the word2vec downsampling keep probability per
// index; all ones when sample is 0.
func (v *vocabulary) keepProbabilities(sample float64) []float64 {
	keep := make([]float64, len(v.ids))
	threshold := sample * float64(v.total)
	for i, c := range v.counts {
		if sample <= 0 {
			keep[i] = 1
			continue
		}
		f := float64(c)
		keep[i] = min(1, (math.Sqrt(f/threshold)+1)*threshold/f)
	}
	return keep
}

// noiseTable samples negatives from the unigram distribution raised to 0.75.
type noiseTable struct {
	cum   []float64
	total float64
}

const noisePower = 0.75

func newNoiseTable(v *vocabulary) *noiseTable {
	t := &noiseTable{cum: make([]float64, len(v.counts))}
	for i, c := range v.counts {
		t.total += math.Pow(float64(c), noisePower)
		t.cum[i] = t.total
	}
	return t
}

func (t *noiseTable) sample(u float64) int32 {
	x := u * t.total
	i := sort.Search(len(t.cum), func(i int) bool { return t.cum[i] > x })
	if i == len(t.cum) {
		i--
	}
	return int32(i)
}
