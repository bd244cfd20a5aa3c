package normalizer

// englishStopwords is the stopword list applied to every text. The list
// follows the common scikit-learn English list plus wish-specific filler.
var englishStopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "almost", "alone", "along",
	"already", "also", "although", "always", "am", "among", "an", "and", "another", "any",
	"anyone", "anything", "anyway", "are", "around", "as", "at", "be", "became", "because",
	"become", "been", "before", "being", "below", "between", "both", "but", "by", "can",
	"cannot", "could", "did", "do", "does", "doing", "done", "down", "during", "each",
	"either", "else", "enough", "even", "ever", "every", "everyone", "everything", "few", "for",
	"from", "further", "get", "give", "go", "had", "has", "have", "having", "he",
	"her", "here", "hers", "herself", "him", "himself", "his", "how", "however", "i",
	"if", "in", "into", "is", "it", "its", "itself", "just", "least", "less",
	"let", "like", "made", "make", "many", "may", "me", "might", "mine", "more",
	"most", "much", "must", "my", "myself", "neither", "never", "no", "nor", "not",
	"nothing", "now", "of", "off", "often", "on", "once", "one", "only", "or",
	"other", "others", "otherwise", "our", "ours", "ourselves", "out", "over", "own", "per",
	"perhaps", "please", "rather", "really", "same", "see", "seem", "she", "should", "since",
	"so", "some", "someone", "something", "sometimes", "still", "such", "than", "that", "the",
	"their", "theirs", "them", "themselves", "then", "there", "these", "they", "this", "those",
	"though", "through", "thus", "to", "too", "toward", "towards", "under", "until", "up",
	"upon", "us", "very", "via", "was", "we", "well", "were", "what", "whatever",
	"when", "where", "whether", "which", "while", "who", "whoever", "whole", "whom", "whose",
	"why", "will", "with", "within", "without", "would", "yet", "you", "your", "yours",
	"yourself", "yourselves",
	// contraction remnants after punctuation stripping
	"s", "t", "d", "ll", "m", "re", "ve", "don", "didn", "doesn", "isn", "wasn", "won",
	// submission filler
	"wish", "want", "hope", "day", "someday", "finally",
}

func newStopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
