package replan

import "regexp"

// FindingCode identifies a terminal key finding: damage definite enough
// that asking further procedure questions wastes the technician's time.
type FindingCode string

const (
	FindingSeizedMotor     FindingCode = "seized_motor"
	FindingBurnedWinding   FindingCode = "burned_winding"
	FindingRefrigerantLeak FindingCode = "refrigerant_leak"
	FindingBrokenShaft     FindingCode = "broken_shaft"
)

// KeyFinding is a detected terminal finding.
type KeyFinding struct {
	Code    FindingCode
	Summary string
	// Pivot reports whether the finding should short-circuit the rest of
	// the procedure and move straight to isolation.
	Pivot bool
}

type findingDef struct {
	code     FindingCode
	summary  string
	pivot    bool
	patterns []*regexp.Regexp
}

var findingDefs = []findingDef{
	{
		code:    FindingSeizedMotor,
		summary: "motor is seized or locked",
		pivot:   true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(motor|rotor|shaft|pump).{0,40}(seized|locked( up)?|won'?t turn|jammed|stuck)`),
			regexp.MustCompile(`(?i)(seized|locked( up)?|jammed) (motor|rotor|shaft)`),
			regexp.MustCompile(`(?i)(двигатель|ротор|вал|насос).{0,40}(заклинил|не проворачивается|не крутится|застрял)`),
			regexp.MustCompile(`(?i)заклинил(о)? (двигатель|ротор|вал)`),
			regexp.MustCompile(`(?i)(motor|rotor|eje|bomba).{0,40}(agarrotado|trabado|bloqueado|no gira)`),
		},
	},
	{
		code:    FindingBurnedWinding,
		summary: "winding is burned out",
		pivot:   true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(winding|stator).{0,30}(burn(t|ed)|scorched|black|smells)|burn(t|ed) winding`),
			regexp.MustCompile(`(?i)обмотк(а|и).{0,30}(сгорел|прогорел|почернел|пахнет)|сгоревш(ая|ей) обмотк`),
			regexp.MustCompile(`(?i)(bobinado|devanado).{0,30}(quemad|chamuscado|negro|huele)|bobinado quemado`),
		},
	},
	{
		code:    FindingRefrigerantLeak,
		summary: "refrigerant has leaked out",
		pivot:   true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)refrigerant.{0,30}(leak|gone|escaped|empty)|hole in the (evaporator|condenser|coil)`),
			regexp.MustCompile(`(?i)хладагент.{0,30}(вытек|ушел|утечк)|дыра в (испарителе|конденсаторе)`),
			regexp.MustCompile(`(?i)refrigerante.{0,30}(fuga|escapado|vac[ií]o)|agujero en el (evaporador|condensador|serpent[ií]n)`),
		},
	},
	{
		code:    FindingBrokenShaft,
		summary: "shaft or coupling is physically broken",
		pivot:   true,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(shaft|coupling|impeller).{0,30}(broken|snapped|sheared)`),
			regexp.MustCompile(`(?i)(вал|муфта|крыльчатка).{0,30}(сломан|лопнул|срезало)`),
			regexp.MustCompile(`(?i)(eje|acoplamiento|impulsor).{0,30}(roto|partido|cortado)`),
		},
	},
}

// DetectKeyFinding scans the message for a terminal finding. The first
// definition that matches wins.
func DetectKeyFinding(message string) (KeyFinding, bool) {
	for _, def := range findingDefs {
		for _, re := range def.patterns {
			if re.MatchString(message) {
				return KeyFinding{Code: def.code, Summary: def.summary, Pivot: def.pivot}, true
			}
		}
	}
	return KeyFinding{}, false
}

// ShouldPivot reports whether the finding short-circuits the remaining
// procedure steps.
func ShouldPivot(f KeyFinding) bool {
	return f.Pivot
}
