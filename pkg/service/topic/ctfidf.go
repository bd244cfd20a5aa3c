package topic

import (
	"cmp"
	"slices"
	"strings"

	"github.com/james-bowman/nlp"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

// classTerms scores terms per class with class-based TF-IDF. Term frequency
// is counted over the concatenated documents of a class and normalised by the
// class length; inverse document frequency is fitted on the individual
// documents so that words common across the corpus are pushed down.
//
// docs holds one normalized document per item and classes the member indexes
// of each class. The result is aligned with classes.
func classTerms(docs []string, classes [][]int, topK int) ([][]model.TopicTerm, error) {
	result := make([][]model.TopicTerm, len(classes))
	if len(classes) == 0 || topK <= 0 {
		return result, nil
	}

	vectoriser := nlp.NewCountVectoriser()
	vectoriser.Fit(docs...)
	if len(vectoriser.Vocabulary) == 0 {
		return result, nil
	}

	counts, err := vectoriser.Transform(docs...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count terms of corpus")
	}
	tfidf := nlp.NewTfidfTransformer()
	tfidf.Fit(counts)

	classDocs := make([]string, len(classes))
	for i, members := range classes {
		parts := make([]string, 0, len(members))
		for _, idx := range members {
			if idx >= 0 && idx < len(docs) && docs[idx] != "" {
				parts = append(parts, docs[idx])
			}
		}
		classDocs[i] = strings.Join(parts, " ")
	}

	classCounts, err := vectoriser.Transform(classDocs...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count terms of classes")
	}
	weights, err := tfidf.Transform(classCounts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to weight class terms")
	}

	vocab := make([]string, len(vectoriser.Vocabulary))
	for term, idx := range vectoriser.Vocabulary {
		vocab[idx] = term
	}

	rows, _ := weights.Dims()
	for c := range classes {
		var total float64
		for t := 0; t < rows; t++ {
			total += classCounts.At(t, c)
		}
		if total == 0 {
			continue
		}

		scored := make([]model.TopicTerm, 0, rows)
		for t := 0; t < rows; t++ {
			if w := weights.At(t, c); w > 0 {
				scored = append(scored, model.TopicTerm{Term: vocab[t], Score: w / total})
			}
		}
		slices.SortFunc(scored, func(a, b model.TopicTerm) int {
			if d := cmp.Compare(b.Score, a.Score); d != 0 {
				return d
			}
			return strings.Compare(a.Term, b.Term)
		})
		result[c] = scored[:min(topK, len(scored))]
	}

	return result, nil
}
