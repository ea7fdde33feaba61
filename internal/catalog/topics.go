package catalog

import "regexp"

// legacyTopic is one coarse equipment keyword group for the fallback
// tracker used when no system was detected. The engine records these so
// directives can still reference what the technician is talking about.
type legacyTopic struct {
	name     string
	patterns []*regexp.Regexp
}

var legacyTopics = []legacyTopic{
	{"electrical_supply", res(
		`voltage|breaker|fuse|wiring|power supply`,
		`напряжени|автомат|предохранител|проводк|питани`,
		`voltaje|interruptor|fusible|cableado|alimentación`,
	)},
	{"noise_vibration", res(
		`noise|vibrat|rattle|grinding|humming`,
		`шум|вибраци|дребезж|скрежет|гудени`,
		`ruido|vibraci|traqueteo|zumbido`,
	)},
	{"leak_moisture", res(
		`leak|drip|moisture|puddle|wet`,
		`утечк|течет|капает|лужа|влаг`,
		`fuga|gotea|humedad|charco|mojado`,
	)},
	{"temperature", res(
		`overheat|too hot|cold|freezing|temperature`,
		`перегрев|горяч|холодн|замерза|температур`,
		`sobrecalienta|caliente|frío|congela|temperatura`,
	)},
	{"control_electronics", res(
		`board|controller|display|error code|sensor`,
		`плат(а|у)|контроллер|дисплей|код ошибки|датчик`,
		`placa|controlador|pantalla|código de error|sensor`,
	)},
}

// ExtractLegacyTopics returns the coarse topics mentioned in free text, in
// registry order. Used only when DetectSystem found nothing.
func ExtractLegacyTopics(text string) []string {
	var found []string
	for _, t := range legacyTopics {
		for _, re := range t.patterns {
			if re.MatchString(text) {
				found = append(found, t.name)
				break
			}
		}
	}
	return found
}
