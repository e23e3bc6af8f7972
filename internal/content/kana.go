// Package content provides the practice prompt source: a small embedded
// hiragana table. Prompt is the kana glyph, expected answer its romaji.
package content

import (
	"math/rand"
	"sync"
)

type Item struct {
	Prompt string
	Answer string
}

// Source hands out randomized practice items.
type Source struct {
	mu    sync.Mutex
	rng   *rand.Rand
	items []Item
}

func NewSource(rng *rand.Rand) *Source {
	return &Source{rng: rng, items: hiragana}
}

func (s *Source) Next() Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[s.rng.Intn(len(s.items))]
}

var hiragana = []Item{
	{"あ", "a"}, {"い", "i"}, {"う", "u"}, {"え", "e"}, {"お", "o"},
	{"か", "ka"}, {"き", "ki"}, {"く", "ku"}, {"け", "ke"}, {"こ", "ko"},
	{"さ", "sa"}, {"し", "shi"}, {"す", "su"}, {"せ", "se"}, {"そ", "so"},
	{"た", "ta"}, {"ち", "chi"}, {"つ", "tsu"}, {"て", "te"}, {"と", "to"},
	{"な", "na"}, {"に", "ni"}, {"ぬ", "nu"}, {"ね", "ne"}, {"の", "no"},
	{"は", "ha"}, {"ひ", "hi"}, {"ふ", "fu"}, {"へ", "he"}, {"ほ", "ho"},
	{"ま", "ma"}, {"み", "mi"}, {"む", "mu"}, {"め", "me"}, {"も", "mo"},
	{"や", "ya"}, {"ゆ", "yu"}, {"よ", "yo"},
	{"ら", "ra"}, {"り", "ri"}, {"る", "ru"}, {"れ", "re"}, {"ろ", "ro"},
	{"わ", "wa"}, {"を", "wo"}, {"ん", "n"},
}
