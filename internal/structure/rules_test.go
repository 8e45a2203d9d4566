package structure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		line string
		want lineKind
	}{
		{"", kindBlank},
		{"--- PAGE 2 ---", kindPageMarker},
		{"---  PAGE 17  ---", kindPageMarker},
		{"• First point", kindListItem},
		{"- dash item", kindListItem},
		{"1. First step", kindListItem},
		{"a) second option", kindListItem},
		{"iv. fourth point", kindListItem},
		{"Chapter 3: Photosynthesis", kindHeading},
		{"Summary:", kindHeading},
		{"INTRODUCTION TO BIOLOGY", kindHeading},
		{"Plants convert light into chemical energy over time.", kindParagraph},
		{"x < y and y < z", kindParagraph}, // math never becomes a heading
	}

	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyLine(tc.line))
		})
	}
}

func TestIsHeadingBounds(t *testing.T) {
	assert.False(t, isHeading("Hi:"), "too short")
	assert.False(t, isHeading(strings.Repeat("WORD ", 13)+"X"), "too long")
	assert.False(t, isHeading("E = mc²"), "math expression")
	assert.False(t, isHeading("A single sentence that simply keeps going"), "mixed case, no marker")
	assert.True(t, isHeading("Lecture 12"), "section keyword prefix")
	assert.True(t, isHeading("KEY TERMS REVIEW"), "all caps")
}

func TestIsAllCapsIgnoresDigitsAndPunctuation(t *testing.T) {
	assert.True(t, isAllCaps("UNIT 5 - REVIEW!"))
	assert.False(t, isAllCaps("Unit 5"))
	assert.False(t, isAllCaps("123 456"), "needs at least one letter")
}

func TestIsListItemMarkers(t *testing.T) {
	assert.True(t, isListItem("* starred"))
	assert.True(t, isListItem("‣ triangle bullet"))
	assert.True(t, isListItem("12) twelfth"))
	assert.False(t, isListItem("-no space after glyph"))
	assert.False(t, isListItem("1.no space"))
	assert.False(t, isListItem("plain text"))
}

func TestCanMergeContinuation(t *testing.T) {
	assert.True(t, canMergeContinuation("and so on"))
	assert.False(t, canMergeContinuation("And so on"), "leading capital starts a new sentence")
	assert.False(t, canMergeContinuation("it ends here."), "period means complete")
	assert.False(t, canMergeContinuation("a + b"), "math is kept on its own line")
	assert.False(t, canMergeContinuation(strings.Repeat("ha ", 12)), "too long to be a fragment")
	assert.False(t, canMergeContinuation(""))
}

func TestIsNoise(t *testing.T) {
	assert.True(t, isNoise("Scanned by CamScanner"))
	assert.True(t, isNoise("COPYRIGHT 2024 Example Press"))
	assert.False(t, isNoise("Photosynthesis basics"))
}
