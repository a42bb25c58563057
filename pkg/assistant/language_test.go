package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicDetector(t *testing.T) {
	d := NewHeuristicDetector()

	assert.Equal(t, LanguageEnglish, d.Detect("I want to build a web app"))
	assert.Equal(t, LanguageEnglish, d.Detect(""))
	assert.Equal(t, LanguageVietnamese, d.Detect("Tôi muốn xây dựng một trang web"))
	assert.Equal(t, LanguageVietnamese, d.Detect("tùy bạn quyết định"))
}
