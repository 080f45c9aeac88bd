package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TVGRAB_TEST_SIMPLE", "hello")
	t.Setenv("TVGRAB_TEST_EMPTY", "")

	tests := []struct {
		name        string
		input       string
		want        string
		wantMissing []string
	}{
		{"simple", "value = ${TVGRAB_TEST_SIMPLE}", "value = hello", nil},
		{"set but empty", "value = '${TVGRAB_TEST_EMPTY}'", "value = ''", nil},
		{"default used", "value = ${TVGRAB_TEST_UNSET:-fallback}", "value = fallback", nil},
		{"default ignored", "value = ${TVGRAB_TEST_SIMPLE:-fallback}", "value = hello", nil},
		{"empty default", "value = '${TVGRAB_TEST_UNSET:-}'", "value = ''", nil},
		{"missing", "a = ${TVGRAB_TEST_B} b = ${TVGRAB_TEST_A} c = ${TVGRAB_TEST_B}",
			"a = ${TVGRAB_TEST_B} b = ${TVGRAB_TEST_A} c = ${TVGRAB_TEST_B}",
			[]string{"TVGRAB_TEST_A", "TVGRAB_TEST_B"}},
		{"no vars", "plain = true", "plain = true", nil},
		{"comment skipped", "# use ${VAR}\n  # or ${OTHER:-x}\nv = ${TVGRAB_TEST_SIMPLE}\n",
			"# use ${VAR}\n  # or ${OTHER:-x}\nv = hello\n", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, missing := substituteEnvVars(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMissing, missing)
		})
	}
}
