package intent

import "regexp"

// res compiles a case-insensitive pattern list covering English, Russian
// and Spanish phrasing.
func res(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Clarification families. Checked before everything else because their
// phrasing overlaps plain diagnostic answers.
var (
	locatePatterns = res(
		`where (is|are|do i find|can i find)|location of|which side|behind (the|which)`,
		`где (находится|стоит|расположен|искать)|с какой стороны`,
		`d[oó]nde (est[aá]|se encuentra|queda)|en qu[eé] (lado|parte)`,
	)

	explainPatterns = res(
		`what (is|are|does) (a |an |the )?\w+( (do|for))?|what'?s (a|an|the)|purpose of`,
		`что (такое|это за)|зачем (нужен|нужна|нужно)|для чего`,
		`qu[eé] es (un|una|el|la)|para qu[eé] (sirve|es)`,
	)

	howtoPatterns = res(
		`how (do|can|should) i (check|test|measure|verify|inspect)|how to (check|test|measure|verify)|what tool`,
		`как (проверить|измерить|протестировать|убедиться)|чем (проверить|измерить)|каким (прибором|образом)`,
		`c[oó]mo (compruebo|mido|verifico|pruebo|reviso)|c[oó]mo se (comprueba|mide|verifica|prueba)|con qu[eé] (herramienta|instrumento)`,
	)
)

var (
	alreadyAnsweredPatterns = res(
		`(i |i'?ve )?already (told|said|answered|mentioned)|as i (said|told|mentioned)|like i said`,
		`(я )?(уже|же) (говорил|сказал|отвечал|писал)|я же (сказал|говорил)`,
		`ya (te |se |lo )?(dije|respond[ií]|mencion[eé])|como (ya )?(dije|coment[eé])`,
	)

	unableToVerifyPatterns = res(
		`(can'?t|cannot|unable to|no way to) (check|test|measure|verify|reach|access|open)|don'?t have (a |the |my )?(multimeter|meter|gauge|tool|tester)`,
		`не могу (проверить|измерить|добраться|открыть)|нет (возможности|доступа)|нечем (проверить|измерить)|нет (мультиметра|прибора|манометра)`,
		`no puedo (comprobar|verificar|medir|acceder|abrir)|no tengo (mult[ií]metro|man[oó]metro|herramienta)|no hay (forma|manera) de`,
	)
)

// Evidence families for the router's strict branch. The replan engine uses
// the looser set below.
var (
	physicalDamagePatterns = res(
		`(found|there'?s|there is|i see|noticed|discovered) (a |an |some )?(hole|crack|leak|burn|burnt|burned|melt|rust|corrosion)|(hole|crack) in the|burn(t|ed) (out|winding|contact)|melted`,
		`(нашел|обнаружил|вижу|заметил) (дыру|трещину|утечку|подгар|нагар)|прогорел|сгорел|оплавил|пробит|треснул`,
		`(encontr[eé]|hay|veo|not[eé]) (un |una )?(agujero|grieta|fuga|quemadura)|quemado|derretido|agrietado|perforado`,
	)

	measurementChangePatterns = res(
		`now (reads|shows|measures)|changed to|dropped to|jumped to|no longer (reads|shows)|reading (changed|is different)`,
		`теперь (показывает|выдает)|упало до|выросло до|больше не (показывает|выдает)|показания (изменились|другие)`,
		`ahora (marca|muestra|mide)|cay[oó] a|subi[oó] a|ya no (marca|muestra)|la lectura (cambi[oó]|es distinta)`,
	)

	technicianDisputePatterns = res(
		`i disagree|that'?s (wrong|not right|not it)|can'?t be (right|the cause)|i don'?t think (so|that'?s)`,
		`не согласен|это не так|не может (быть|этого быть)|вряд ли (это|дело в)`,
		`no estoy de acuerdo|eso (no es|est[aá] mal)|no puede ser|no creo que`,
	)

	newObservationPatterns = res(
		`(just )?(noticed|found|saw|spotted|realized)|one more thing|forgot to (say|mention)`,
		`(только что )?(заметил|нашел|увидел|обнаружил)|еще (кое-что|одно)|забыл (сказать|упомянуть)`,
		`(acabo de )?(notar|encontrar|ver|descubrir)|not[eé]|encontr[eé]|una cosa m[aá]s|olvid[eé] (decir|mencionar)`,
	)

	// Loose evidence vocabulary for the replan engine: bare damage nouns
	// count even without a reporting verb.
	looseDamagePatterns = res(
		`hole|crack|leak|burn|melted|refrigerant (loss|gone|escaped)|oil (trace|residue|stain)|broken|snapped`,
		`дыр(а|ка)|трещин|утечк|прогар|нагар|оплав|хладагент (ушел|вытек)|сломан|лопнул|шипит`,
		`agujero|grieta|fuga|quemad|derretid|refrigerante (perdido|escapado)|roto|partido`,
	)
)

// Confirmation vocabulary.
var (
	// Word boundaries are spelled out as ([\s,.!]|$) because Go's \b is
	// ASCII-only and never fires next to Cyrillic or accented letters.
	acceptPatterns = res(
		`^\s*(yes|yeah|yep|ok(ay)?|sure|confirm(ed)?|agreed?|sounds (good|right)|that works|correct)([\s,.!]|$)`,
		`^\s*(да|ага|хорошо|ладно|подтверждаю|согласен|согласна|верно|все так)([\s,.!]|$)`,
		`^\s*(s[ií]|vale|claro|ok|confirmo|de acuerdo|correcto|est[aá] bien)([\s,.!]|$)`,
	)

	// Bare or unit-suffixed number anywhere in a short confirmation reply.
	hoursNumberPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(hours?|hrs?|h\b|час(а|ов)?|horas?)?`)

	// Technical-context guard: a number next to equipment or measurement
	// vocabulary is a reading, not a labor-hours confirmation.
	technicalContextPatterns = res(
		`motor|pump|compressor|capacitor|winding|valve|bearing|volt|amp\b|amps|ohm|psi|bar\b|pressure|temperature|degrees`,
		`двигател|насос|компрессор|конденсатор|обмотк|клапан|подшипник|вольт|ампер|(^|\s)ом([\s.,]|$)|давлени|температур|градус`,
		`motor|bomba|compresor|condensador|bobinado|v[aá]lvula|rodamiento|voltio|amperio|ohmio|presi[oó]n|temperatura|grados`,
	)
)
