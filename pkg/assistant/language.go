package assistant

import "strings"

// Language codes used for reply localization.
const (
	LanguageEnglish    = "en"
	LanguageVietnamese = "vi"
)

// LanguageDetector decides which language replies should be written in.
type LanguageDetector interface {
	Detect(message string) string
}

// HeuristicDetector detects Vietnamese by the presence of characters from the
// Vietnamese extended Latin range; everything else is treated as English.
type HeuristicDetector struct{}

// NewHeuristicDetector creates the default detector.
func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

// vietnameseMarks covers the diacritic letters unique to Vietnamese
// orthography (tone-marked vowels and đ).
//
//nolint:gochecknoglobals // Immutable character table.
var vietnameseMarks = "ăâđêôơưàảãạáằẳẵặắầẩẫậấèẻẽẹéềểễệếìỉĩịíòỏõọóồổỗộốờởỡợớùủũụúừửữựứỳỷỹỵý"

// Detect returns the language code for the given message.
func (d *HeuristicDetector) Detect(message string) string {
	lowered := strings.ToLower(message)
	for _, r := range lowered {
		if strings.ContainsRune(vietnameseMarks, r) {
			return LanguageVietnamese
		}
	}
	return LanguageEnglish
}
