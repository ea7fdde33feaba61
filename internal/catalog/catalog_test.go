package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectSystem(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"english pump", "No noise from pump when faucet opens, completely silent", "water_pump"},
		{"russian pump", "Насос не качает воду, давление не растет", "water_pump"},
		{"spanish pump", "La bomba de agua no arranca", "water_pump"},
		{"english fridge", "The freezer compressor trips after a few seconds", "refrigeration_circuit"},
		{"russian fridge", "Компрессор холодильника постоянно отключается", "refrigeration_circuit"},
		{"spanish motor", "El motor eléctrico no gira", "electric_motor"},
		{"english hvac", "Weak air flow from the vents upstairs", "hvac_airflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DetectSystem(tt.message)
			require.True(t, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDetectSystemUnknown(t *testing.T) {
	_, ok := DetectSystem("hello, I need some help please")
	require.False(t, ok)
}

func TestDetectSystemPriorityOrder(t *testing.T) {
	// Ambiguous text mentioning both pump and compressor: the first
	// registered system wins.
	got, ok := DetectSystem("the pump next to the compressor is acting up")
	require.True(t, ok)
	require.Equal(t, "water_pump", got)
}

func TestMapInitialMessageToSteps(t *testing.T) {
	proc, ok := GetProcedure("water_pump")
	require.True(t, ok)

	steps := MapInitialMessageToSteps("No noise from pump when faucet opens, completely silent", proc)
	require.Contains(t, steps, "wp_1")
}

func TestNextStepDeclarationOrder(t *testing.T) {
	proc, _ := GetProcedure("water_pump")

	// Nothing settled: the first declared step with no prerequisites.
	step := NextStep(proc, nil, nil)
	require.NotNil(t, step)
	require.Equal(t, "wp_1", step.ID)

	// wp_1 done: wp_2 is the first eligible in declaration order even
	// though wp_3 is also eligible.
	step = NextStep(proc, []string{"wp_1"}, nil)
	require.Equal(t, "wp_2", step.ID)

	// Unable counts as settled for prerequisite purposes.
	step = NextStep(proc, []string{"wp_1"}, []string{"wp_2"})
	require.Equal(t, "wp_3", step.ID)
}

func TestNextStepIsIdempotent(t *testing.T) {
	proc, _ := GetProcedure("refrigeration_circuit")
	completed := []string{"rc_1", "rc_2"}
	unable := []string{"rc_3"}

	first := NextStep(proc, completed, unable)
	second := NextStep(proc, completed, unable)
	require.Equal(t, first, second)
}

func TestNextStepSkipsBlockedEarlierStep(t *testing.T) {
	// s1's prerequisite s3 is declared after it. The scan must ask s2 and
	// then s3 before ever reaching s1: declaration order only breaks ties
	// between eligible steps, it does not override prerequisites.
	proc := &Procedure{
		System: "synthetic",
		Steps: []Step{
			{ID: "s1", Question: "q1", Prerequisites: []string{"s3"}},
			{ID: "s2", Question: "q2"},
			{ID: "s3", Question: "q3", Prerequisites: []string{"s2"}},
		},
	}

	step := NextStep(proc, nil, nil)
	require.Equal(t, "s2", step.ID)

	step = NextStep(proc, []string{"s2"}, nil)
	require.Equal(t, "s3", step.ID)

	step = NextStep(proc, []string{"s2", "s3"}, nil)
	require.Equal(t, "s1", step.ID)
}

func TestNextStepAllSettled(t *testing.T) {
	proc, _ := GetProcedure("hvac_airflow")
	completed := []string{"hv_1", "hv_2", "hv_3", "hv_4"}

	require.Nil(t, NextStep(proc, completed, nil))
	require.True(t, AllSettled(proc, completed, nil))
}

func TestBuildProcedureContext(t *testing.T) {
	proc, _ := GetProcedure("water_pump")

	block := BuildProcedureContext(proc, []string{"wp_1"}, []string{"wp_3"})
	require.Contains(t, block, "COMPLETED STEPS:")
	require.Contains(t, block, "wp_1")
	require.Contains(t, block, "SKIPPED (technician unable to verify):")
	require.Contains(t, block, "wp_3")
	require.Contains(t, block, "NEXT QUESTION (wp_2)")
}

func TestBuildProcedureContextTerminal(t *testing.T) {
	proc, _ := GetProcedure("hvac_airflow")
	block := BuildProcedureContext(proc, []string{"hv_1", "hv_2", "hv_3", "hv_4"}, nil)
	require.True(t, strings.Contains(block, "ALL PROCEDURE STEPS COMPLETE"))
}

func TestExtractLegacyTopics(t *testing.T) {
	topics := ExtractLegacyTopics("there is a strange noise and some water leaking under the unit")
	require.Equal(t, []string{"noise_vibration", "leak_moisture"}, topics)

	require.Empty(t, ExtractLegacyTopics("everything seems fine"))
}
