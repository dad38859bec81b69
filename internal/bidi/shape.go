package bidi

import "strings"

// arabicForms lists the presentation-form code points of one Arabic base
// letter. A zero rune means the letter has no such form (right-joining
// letters never take initial or medial shapes).
type arabicForms struct {
	isolated, final, initial, medial rune
}

// shapes maps each Arabic base letter to its Presentation Forms-B glyphs.
// Letters with only isolated and final forms join on the right side only.
var shapes = map[rune]arabicForms{
	'ء': {isolated: 'ﺀ'},                                                 // hamza
	'آ': {isolated: 'ﺁ', final: 'ﺂ'},                                // alef madda
	'أ': {isolated: 'ﺃ', final: 'ﺄ'},                                // alef hamza above
	'ؤ': {isolated: 'ﺅ', final: 'ﺆ'},                                // waw hamza
	'إ': {isolated: 'ﺇ', final: 'ﺈ'},                                // alef hamza below
	'ئ': {isolated: 'ﺉ', final: 'ﺊ', initial: 'ﺋ', medial: 'ﺌ'}, // yeh hamza
	'ا': {isolated: 'ﺍ', final: 'ﺎ'},                                // alef
	'ب': {isolated: 'ﺏ', final: 'ﺐ', initial: 'ﺑ', medial: 'ﺒ'}, // beh
	'ة': {isolated: 'ﺓ', final: 'ﺔ'},                                // teh marbuta
	'ت': {isolated: 'ﺕ', final: 'ﺖ', initial: 'ﺗ', medial: 'ﺘ'}, // teh
	'ث': {isolated: 'ﺙ', final: 'ﺚ', initial: 'ﺛ', medial: 'ﺜ'}, // theh
	'ج': {isolated: 'ﺝ', final: 'ﺞ', initial: 'ﺟ', medial: 'ﺠ'}, // jeem
	'ح': {isolated: 'ﺡ', final: 'ﺢ', initial: 'ﺣ', medial: 'ﺤ'}, // hah
	'خ': {isolated: 'ﺥ', final: 'ﺦ', initial: 'ﺧ', medial: 'ﺨ'}, // khah
	'د': {isolated: 'ﺩ', final: 'ﺪ'},                                // dal
	'ذ': {isolated: 'ﺫ', final: 'ﺬ'},                                // thal
	'ر': {isolated: 'ﺭ', final: 'ﺮ'},                                // reh
	'ز': {isolated: 'ﺯ', final: 'ﺰ'},                                // zain
	'س': {isolated: 'ﺱ', final: 'ﺲ', initial: 'ﺳ', medial: 'ﺴ'}, // seen
	'ش': {isolated: 'ﺵ', final: 'ﺶ', initial: 'ﺷ', medial: 'ﺸ'}, // sheen
	'ص': {isolated: 'ﺹ', final: 'ﺺ', initial: 'ﺻ', medial: 'ﺼ'}, // sad
	'ض': {isolated: 'ﺽ', final: 'ﺾ', initial: 'ﺿ', medial: 'ﻀ'}, // dad
	'ط': {isolated: 'ﻁ', final: 'ﻂ', initial: 'ﻃ', medial: 'ﻄ'}, // tah
	'ظ': {isolated: 'ﻅ', final: 'ﻆ', initial: 'ﻇ', medial: 'ﻈ'}, // zah
	'ع': {isolated: 'ﻉ', final: 'ﻊ', initial: 'ﻋ', medial: 'ﻌ'}, // ain
	'غ': {isolated: 'ﻍ', final: 'ﻎ', initial: 'ﻏ', medial: 'ﻐ'}, // ghain
	'ف': {isolated: 'ﻑ', final: 'ﻒ', initial: 'ﻓ', medial: 'ﻔ'}, // feh
	'ق': {isolated: 'ﻕ', final: 'ﻖ', initial: 'ﻗ', medial: 'ﻘ'}, // qaf
	'ك': {isolated: 'ﻙ', final: 'ﻚ', initial: 'ﻛ', medial: 'ﻜ'}, // kaf
	'ل': {isolated: 'ﻝ', final: 'ﻞ', initial: 'ﻟ', medial: 'ﻠ'}, // lam
	'م': {isolated: 'ﻡ', final: 'ﻢ', initial: 'ﻣ', medial: 'ﻤ'}, // meem
	'ن': {isolated: 'ﻥ', final: 'ﻦ', initial: 'ﻧ', medial: 'ﻨ'}, // noon
	'ه': {isolated: 'ﻩ', final: 'ﻪ', initial: 'ﻫ', medial: 'ﻬ'}, // heh
	'و': {isolated: 'ﻭ', final: 'ﻮ'},                                // waw
	'ى': {isolated: 'ﻯ', final: 'ﻰ'},                                // alef maksura
	'ي': {isolated: 'ﻱ', final: 'ﻲ', initial: 'ﻳ', medial: 'ﻴ'}, // yeh
}

// ligatures maps lam-alef presentation forms to their two base letters.
type ligature struct {
	isolated, final rune
	alef            rune
}

// lamAlef lists the four lam-alef ligature families.
var lamAlef = []ligature{
	{isolated: 'ﻵ', final: 'ﻶ', alef: 'آ'},
	{isolated: 'ﻷ', final: 'ﻸ', alef: 'أ'},
	{isolated: 'ﻹ', final: 'ﻺ', alef: 'إ'},
	{isolated: 'ﻻ', final: 'ﻼ', alef: 'ا'},
}

// unshapeTable is the inverse of shapes plus ligatures, built once at init.
// Presentation forms map to their base letter; ligatures map to two runes.
var unshapeTable = buildUnshapeTable()

func buildUnshapeTable() map[rune]string {
	t := make(map[rune]string, len(shapes)*4+len(lamAlef)*2)
	for base, f := range shapes {
		for _, form := range []rune{f.isolated, f.final, f.initial, f.medial} {
			if form != 0 {
				t[form] = string(base)
			}
		}
	}
	for _, lig := range lamAlef {
		expansion := string([]rune{'ل', lig.alef})
		t[lig.isolated] = expansion
		t[lig.final] = expansion
	}
	return t
}

// Unshape folds Arabic presentation-form glyphs back to their base
// letters and expands lam-alef ligatures. Text without presentation
// forms is returned unchanged, so the operation is idempotent.
func Unshape(text string) string {
	if !strings.ContainsFunc(text, func(r rune) bool {
		_, ok := unshapeTable[r]
		return ok
	}) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if base, ok := unshapeTable[r]; ok {
			b.WriteString(base)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Shape converts Arabic base letters to contextual presentation forms for
// rendering paths (charts, terminal display). It is the inverse of
// Unshape and is never applied on the embedding path.
func Shape(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		forms, ok := shapes[r]
		if !ok {
			b.WriteRune(r)
			continue
		}

		// Lam followed by an alef variant renders as one ligature glyph.
		if r == 'ل' && i+1 < len(runes) {
			if lig := lamAlefFor(runes[i+1]); lig != nil {
				if joinsLeft(prevLetter(runes, i)) {
					b.WriteRune(lig.final)
				} else {
					b.WriteRune(lig.isolated)
				}
				i++ // consume the alef
				continue
			}
		}

		prev := joinsLeft(prevLetter(runes, i))
		next := joinsRight(nextLetter(runes, i))

		switch {
		case prev && next && forms.medial != 0:
			b.WriteRune(forms.medial)
		case prev && forms.final != 0:
			b.WriteRune(forms.final)
		case next && forms.initial != 0:
			b.WriteRune(forms.initial)
		default:
			b.WriteRune(forms.isolated)
		}
	}
	return b.String()
}

// lamAlefFor returns the ligature family for an alef variant, or nil.
func lamAlefFor(r rune) *ligature {
	for i := range lamAlef {
		if lamAlef[i].alef == r {
			return &lamAlef[i]
		}
	}
	return nil
}

// prevLetter returns the Arabic letter immediately before index i, or 0.
// Harakat (combining marks, U+064B..U+065F) are transparent to joining.
func prevLetter(runes []rune, i int) rune {
	for j := i - 1; j >= 0; j-- {
		if runes[j] >= 'ً' && runes[j] <= 'ٟ' {
			continue
		}
		return runes[j]
	}
	return 0
}

// nextLetter returns the Arabic letter immediately after index i, or 0.
func nextLetter(runes []rune, i int) rune {
	for j := i + 1; j < len(runes); j++ {
		if runes[j] >= 'ً' && runes[j] <= 'ٟ' {
			continue
		}
		return runes[j]
	}
	return 0
}

// joinsLeft reports whether r joins to the letter on its left side
// (i.e. can connect forward): only dual-joining letters do.
func joinsLeft(r rune) bool {
	f, ok := shapes[r]
	return ok && f.initial != 0
}

// joinsRight reports whether r accepts a connection from the previous
// letter: every joining letter with a final form does.
func joinsRight(r rune) bool {
	f, ok := shapes[r]
	return ok && f.final != 0
}
