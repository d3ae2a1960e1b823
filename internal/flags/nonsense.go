package flags

import (
	"fmt"
	"strings"
)

// Detector judges whether a string looks like non-linguistic random
// text. Implementations may fail on input they cannot judge; the caller
// treats any error as "not flagged".
type Detector interface {
	IsNonsense(s string) (bool, error)
}

// minDetectorLetters is the fewest letters the bigram detector will
// judge; shorter strings carry too little signal either way.
const minDetectorLetters = 6

// nonsenseRatioThresh: strings where fewer than this share of adjacent
// letter pairs are common English bigrams are considered random.
const nonsenseRatioThresh = 0.5

// BigramDetector scores a string by how many of its adjacent letter
// pairs occur in ordinary English text. Real words and real-ish handles
// ("johnsmith", "television") score high; keyboard mash and generated
// suffixes ("xkqvzjwp") score low.
type BigramDetector struct{}

func NewBigramDetector() *BigramDetector {
	return &BigramDetector{}
}

func (d *BigramDetector) IsNonsense(s string) (bool, error) {
	letters := onlyLetters(strings.ToLower(s))
	if len(letters) < minDetectorLetters {
		return false, fmt.Errorf("too short to judge: %d letters", len(letters))
	}

	total := 0
	common := 0
	for i := 0; i+1 < len(letters); i++ {
		total++
		if commonBigrams[string(letters[i:i+2])] {
			common++
		}
	}
	if total == 0 {
		return false, fmt.Errorf("no letter pairs to judge")
	}

	ratio := float64(common) / float64(total)
	return ratio < nonsenseRatioThresh, nil
}

func onlyLetters(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// commonBigrams holds letter pairs frequent in English words and names,
// drawn from standard corpus frequency tables.
var commonBigrams = toSet(
	"th he in er an re on at en nd ti es or te of ed is it al ar st to nt " +
		"ng se ha as ou io le ve co me de hi ri ro ic ne ea ra ce li ch ll " +
		"be ma si om ur ca el ta la ns di fo ho pe ec pr no ct us ac ot il " +
		"tr ly nc et ut ss so rs un lo wa ge ie wh ee wi em ad ol rt po we " +
		"na ul ni ts mo ow pa im mi ai sh ir su id os iv ia am fi ci vi pl " +
		"ig tu ev ld ry mp fe bl ab gh ty op wo sa ay ex ke fr oo av ag if " +
		"ap gr od bo sp rd do uc bu ei ov by rm ep tt ys oc dr ga ff ue ck " +
		"ew mu br bi pt ud qu ja jo ju ki kn ka my ny ph ub ug um up va vo " +
		"ya ye yo za ze nk nn ls rn rr sc sk sl sm sn sw tw wr ob og oi ok " +
		"lu nu cu cy du dy eb ef eg ey fa fl fu gi gl go gu hn hr hu ib ip " +
		"iz je",
)

func toSet(pairs string) map[string]bool {
	set := make(map[string]bool)
	for _, p := range strings.Fields(pairs) {
		if len(p) == 2 {
			set[p] = true
		}
	}
	return set
}
