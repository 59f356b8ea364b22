package analyzer

// englishStopWords is the base English stop-word list. Unrecognized
// languages fall back to this set.
var englishStopWords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "when",
	"at", "by", "for", "with", "about", "against", "between", "into",
	"through", "during", "before", "after", "above", "below", "to", "from",
	"up", "down", "in", "out", "on", "off", "over", "under", "again",
	"further", "once", "here", "there", "all", "any", "both", "each",
	"few", "more", "most", "other", "some", "such", "no", "nor", "not",
	"only", "own", "same", "so", "than", "too", "very", "can", "will",
	"just", "is", "are", "was", "were", "be", "been", "being", "have",
	"has", "had", "having", "do", "does", "did", "doing", "of", "it",
	"its", "this", "that", "these", "those", "i", "you", "he", "she",
	"we", "they", "them", "his", "her", "their", "our", "your", "as",
}

var frenchStopWords = []string{
	"le", "la", "les", "un", "une", "des", "et", "ou", "mais", "donc",
	"que", "qui", "dans", "pour", "sur", "avec", "sans", "de", "du",
	"ce", "cet", "cette", "ces", "il", "elle", "nous", "vous", "ils",
	"elles", "son", "sa", "ses", "au", "aux", "est", "sont", "ne", "pas",
}

var spanishStopWords = []string{
	"el", "la", "los", "las", "un", "una", "unos", "unas", "y", "o",
	"pero", "que", "en", "de", "del", "al", "para", "por", "con", "sin",
	"es", "son", "era", "eran", "ser", "estar", "su", "sus", "este",
	"esta", "estos", "estas", "no", "se", "lo",
}

var germanStopWords = []string{
	"der", "die", "das", "ein", "eine", "und", "oder", "aber", "nicht",
	"ist", "sind", "war", "waren", "sein", "ich", "du", "er", "sie",
	"es", "wir", "ihr", "mit", "ohne", "für", "von", "zu", "auf", "in",
}

// languageStopWords maps an ISO-639-1-ish language tag to its base
// stop-word list.
var languageStopWords = map[string][]string{
	"en": englishStopWords,
	"fr": frenchStopWords,
	"es": spanishStopWords,
	"de": germanStopWords,
}

// StopWordsFor returns the base stop-word list for language, falling back to
// English for unrecognized tags.
func StopWordsFor(language string) []string {
	if words, ok := languageStopWords[language]; ok {
		return words
	}
	return englishStopWords
}
