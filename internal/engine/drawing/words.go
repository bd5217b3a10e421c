package drawing

import "hash/fnv"

// Word pool, bucketed by difficulty. Kept small on purpose; rooms cycle
// through words per round and duplicates across games are harmless.
var (
	easyWords = []string{
		"cat", "dog", "sun", "car", "tree", "fish", "house", "moon",
		"star", "ball", "cake", "boat", "bird", "shoe", "clock",
	}
	mediumWords = []string{
		"elephant", "bicycle", "pizza", "guitar", "castle", "rocket",
		"penguin", "volcano", "rainbow", "tractor", "lantern", "octopus",
	}
	hardWords = []string{
		"algorithm", "philosophy", "metamorphosis", "constellation",
		"archaeology", "kaleidoscope", "procrastination", "thermometer",
	}

	allWords = func() []string {
		words := make([]string, 0, len(easyWords)+len(mediumWords)+len(hardWords))
		words = append(words, easyWords...)
		words = append(words, mediumWords...)
		words = append(words, hardWords...)
		return words
	}()
)

// wordFor picks the round's word from the fixed list. The pick is a hash of
// room and round rather than a live RNG so that HandleClientMessage stays a
// pure function of its inputs.
func wordFor(roomID string, round int) string {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	h.Write([]byte{byte(round), byte(round >> 8), 0x9e, 0x37})
	return allWords[h.Sum32()%uint32(len(allWords))]
}
