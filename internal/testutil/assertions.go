package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// AssertJSON checks that the harness output is a JSON document equal to
// want, ignoring key order and formatting.
func AssertJSON(t *testing.T, result *HarnessResult, want string) {
	t.Helper()
	require.NoError(t, result.Err)

	var got, expected any
	require.NoError(t, json.Unmarshal([]byte(result.Output), &got), "output is not JSON: %s", result.Output)
	require.NoError(t, json.Unmarshal([]byte(want), &expected), "expectation is not JSON: %s", want)

	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("unexpected output (-want +got):\n%s", diff)
	}
}

// AssertLogged checks that the captured log output contains substr.
func AssertLogged(t *testing.T, result *HarnessResult, substr string) {
	t.Helper()
	require.True(t,
		strings.Contains(result.LogOutput, substr),
		"expected log output to contain %q", substr,
	)
}
