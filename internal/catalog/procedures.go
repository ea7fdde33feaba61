package catalog

import "regexp"

// res compiles a case-insensitive pattern list. Patterns cover English,
// Russian and Spanish phrasing; classification never consults case locale.
func res(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

func init() {
	registerWaterPump()
	registerRefrigerationCircuit()
	registerElectricMotor()
	registerHVACAirflow()
}

func registerWaterPump() {
	register(&Procedure{
		System:      "water_pump",
		DisplayName: "Water Pump",
		Complex:     false,
		Variant:     "standard",
		Steps: []Step{
			{
				ID:       "wp_1",
				Question: "Does the pump make any sound when a faucet is opened — humming, clicking, or is it completely silent?",
				MatchPatterns: res(
					`\bsilent\b|no (sound|noise)|\bquiet\b|hum(s|ming)?\b|click(s|ing)?\b|buzz(es|ing)?\b`,
					`тих(о|ий|ая)|нет (шума|звука)|гуд(ит|ение)|щелка(ет|нье)|жужж`,
					`silencio(so)?|sin ruido|no hace ruido|zumb(a|ido)|chasquido`,
				),
			},
			{
				ID:            "wp_2",
				Question:      "Measure the supply voltage at the pump terminals. What reading do you get?",
				Prerequisites: []string{"wp_1"},
				MatchPatterns: res(
					`\d+\s*(v|volt)|voltage (is|reads|present)|no voltage|power (is )?(present|absent)`,
					`\d+\s*(в|вольт)|напряжени(е|я)|питани(е|я) (есть|нет)`,
					`\d+\s*(v|voltios?)|voltaje|hay (corriente|tensión)|sin (corriente|tensión)`,
				),
			},
			{
				ID:            "wp_3",
				Question:      "Check the pressure switch: do the contacts close when the line pressure drops?",
				Prerequisites: []string{"wp_1"},
				MatchPatterns: res(
					`pressure switch|contacts? (close|open|stuck|pitted)`,
					`реле давления|контакт(ы|а) (замыка|размыка|подгоре)`,
					`presostato|interruptor de presión|contactos? (cierran|abren|pegados)`,
				),
			},
			{
				ID:            "wp_4",
				Question:      "Test the start capacitor with a multimeter. Does it read within its rated microfarads?",
				Prerequisites: []string{"wp_2"},
				MatchPatterns: res(
					`capacitor|microfarad|\buf\b|µf`,
					`конденсатор|микрофарад|мкф`,
					`condensador|capacitor|microfaradio`,
				),
			},
			{
				ID:            "wp_5",
				Question:      "With power off, can you turn the motor shaft by hand? Does it spin freely?",
				Prerequisites: []string{"wp_2"},
				MatchPatterns: res(
					`shaft (turns|spins|is stuck)|turns? freely|seized|won'?t turn|locked up`,
					`вал (крутится|вращается|заклинил)|заклин|не (крутится|проворачивается)`,
					`eje (gira|trabado)|gira libre|agarrotado|no gira`,
				),
			},
			{
				ID:            "wp_6",
				Question:      "Close the inlet valve and inspect the impeller for debris or wear. What do you find?",
				Prerequisites: []string{"wp_3", "wp_5"},
				MatchPatterns: res(
					`impeller|debris|worn vanes?`,
					`крыльчатк|рабочее колесо|мусор`,
					`impulsor|rodete|residuos`,
				),
			},
		},
	}, res(
		`\bpump\b|well pump|water pressure|faucet|booster`,
		`насос|гидрофор|давлени(е|я) воды`,
		`\bbomba\b|bomba de agua|presión de agua|grifo`,
	))
}

func registerRefrigerationCircuit() {
	register(&Procedure{
		System:      "refrigeration_circuit",
		DisplayName: "Refrigeration Circuit",
		Complex:     true,
		Variant:     "standard",
		Steps: []Step{
			{
				ID:       "rc_1",
				Question: "Does the compressor start and keep running, or does it trip after a few seconds?",
				MatchPatterns: res(
					`compressor (runs|starts|trips|cycles|is dead|won'?t start)`,
					`компрессор (работает|запускается|отключается|не запускается)`,
					`compresor (funciona|arranca|se apaga|no arranca)`,
				),
			},
			{
				ID:            "rc_2",
				Question:      "Connect the gauges. What are the suction and discharge pressures?",
				Prerequisites: []string{"rc_1"},
				MatchPatterns: res(
					`suction|discharge|\d+\s*(psi|bar)|low side|high side`,
					`всасывани|нагнетани|\d+\s*(бар|атм)|низкое давление|высокое давление`,
					`succión|descarga|\d+\s*(psi|bar)|lado de baja|lado de alta`,
				),
			},
			{
				ID:            "rc_3",
				Question:      "Inspect the evaporator coil. Is it evenly frosted, partially iced, or completely dry?",
				Prerequisites: []string{"rc_1"},
				MatchPatterns: res(
					`evaporator|coil (is )?(frosted|iced|dry|clean)`,
					`испарител|обмерза|иней|сух(ой|ая)`,
					`evaporador|serpentín (escarchado|seco|congelado)`,
				),
			},
			{
				ID:            "rc_4",
				Question:      "Check the condenser: is the fan running and the coil free of dirt?",
				Prerequisites: []string{"rc_1"},
				MatchPatterns: res(
					`condenser|fan (runs|running|stopped)|coil (dirty|blocked|clean)`,
					`конденсатор|вентилятор (работает|стоит)|загрязн`,
					`condensador|ventilador (funciona|parado)|serpentín sucio`,
				),
			},
			{
				ID:            "rc_5",
				Question:      "Perform a leak check on the circuit. Any trace of oil, bubbles, or dye?",
				Prerequisites: []string{"rc_2", "rc_3"},
				MatchPatterns: res(
					`leak|refrigerant (loss|low|gone)|oil (trace|residue)|bubbles`,
					`утечк|хладагент|масл(о|яные следы)|пузыр`,
					`fuga|refrigerante (bajo|perdido)|burbuja|rastro de aceite`,
				),
			},
			{
				ID:            "rc_6",
				Question:      "Check the expansion valve superheat. Is it within the rated range?",
				Prerequisites: []string{"rc_2"},
				MatchPatterns: res(
					`expansion valve|superheat|txv`,
					`трв|терморегулирующий|перегрев`,
					`válvula de expansión|sobrecalentamiento`,
				),
			},
			{
				ID:            "rc_7",
				Question:      "Measure the compressor winding resistance between all three terminals. What values do you read?",
				Prerequisites: []string{"rc_1"},
				MatchPatterns: res(
					`winding|resistance|\d+\s*ohm|open winding|shorted`,
					`обмотк|сопротивлени|\d+\s*ом|обрыв|замыкание`,
					`bobinado|resistencia|\d+\s*ohm|devanado (abierto|en corto)`,
				),
			},
		},
	}, res(
		`compressor|refrigerat|freezer|fridge|evaporator|condenser|cooling unit`,
		`компрессор|холодильн|морозильн|испарител|конденсатор`,
		`compresor|refrigerador|congelador|evaporador|condensador|nevera`,
	))
}

func registerElectricMotor() {
	register(&Procedure{
		System:      "electric_motor",
		DisplayName: "Electric Motor",
		Complex:     true,
		Variant:     "standard",
		Steps: []Step{
			{
				ID:       "em_1",
				Question: "With power off, does the rotor turn freely by hand, or does it drag or lock?",
				MatchPatterns: res(
					`turns? freely|drags?|locked|seized|won'?t turn`,
					`крутится свободно|подклинивает|заклин|не крутится`,
					`gira libre|roza|trabado|agarrotado|no gira`,
				),
			},
			{
				ID:            "em_2",
				Question:      "Measure the winding resistance phase to phase. Are the three readings balanced?",
				Prerequisites: []string{"em_1"},
				MatchPatterns: res(
					`winding|resistance|balanced|\d+\s*ohm`,
					`обмотк|сопротивлени|\d+\s*ом`,
					`bobinado|resistencia|\d+\s*ohm`,
				),
			},
			{
				ID:            "em_3",
				Question:      "Megger the windings to ground. What insulation resistance do you get?",
				Prerequisites: []string{"em_2"},
				MatchPatterns: res(
					`insulation|megger|megohm|to ground`,
					`изоляци|мегаомметр|мегом|на корпус`,
					`aislamiento|megóhmetro|megaohm|a tierra`,
				),
			},
			{
				ID:            "em_4",
				Question:      "Check the bearings for play and noise. Any roughness when you spin the shaft?",
				Prerequisites: []string{"em_1"},
				MatchPatterns: res(
					`bearing|play|grinding|rough`,
					`подшипник|люфт|скрежет`,
					`rodamiento|cojinete|juego|áspero`,
				),
			},
			{
				ID:            "em_5",
				Question:      "Inspect the contactor and overload relay. Do the contacts pull in cleanly under control power?",
				Prerequisites: []string{"em_2"},
				MatchPatterns: res(
					`contactor|overload|relay|pulls? in`,
					`контактор|тепловое реле|пускател`,
					`contactor|relé (térmico|de sobrecarga)`,
				),
			},
		},
	}, res(
		`\bmotor\b|electric motor|three.?phase|induction`,
		`двигател|электродвигател|трехфазн`,
		`motor eléctrico|trifásico|inducción`,
	))
}

func registerHVACAirflow() {
	register(&Procedure{
		System:      "hvac_airflow",
		DisplayName: "HVAC Airflow",
		Complex:     false,
		Variant:     "standard",
		Steps: []Step{
			{
				ID:       "hv_1",
				Question: "Check the air filter. Is it clean, dirty, or completely clogged?",
				MatchPatterns: res(
					`filter (is )?(clean|dirty|clogged|blocked)`,
					`фильтр (чист|грязн|забит)`,
					`filtro (limpio|sucio|obstruido)`,
				),
			},
			{
				ID:            "hv_2",
				Question:      "Is the blower wheel spinning at full speed, and is the belt (if fitted) intact?",
				Prerequisites: []string{"hv_1"},
				MatchPatterns: res(
					`blower|belt (intact|broken|loose)|wheel`,
					`вентилятор|ремень (цел|порван|ослаб)|крыльчатк`,
					`soplador|turbina|correa (intacta|rota|floja)`,
				),
			},
			{
				ID:            "hv_3",
				Question:      "Walk the duct run. Any crushed sections, open joints, or closed dampers?",
				Prerequisites: []string{"hv_2"},
				MatchPatterns: res(
					`duct|damper|crushed|joint`,
					`воздуховод|заслонк|смят`,
					`conducto|compuerta|aplastado`,
				),
			},
			{
				ID:            "hv_4",
				Question:      "Confirm the thermostat is calling for fan. Does the call reach the air handler board?",
				Prerequisites: []string{"hv_1"},
				MatchPatterns: res(
					`thermostat|calling|fan signal|board`,
					`термостат|сигнал|плат(а|у)`,
					`termostato|señal|placa`,
				),
			},
		},
	}, res(
		`hvac|air ?flow|air handler|blower|duct|ventilation|weak air`,
		`вентиляци|воздуховод|слабый поток|приток воздуха`,
		`climatización|flujo de aire|conducto|ventilación`,
	))
}
