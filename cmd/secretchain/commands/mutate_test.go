package commands

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/secretchain/internal/errors"
	"github.com/systmms/secretchain/tests/fakes"
	"github.com/systmms/secretchain/tests/testutil"
)

func TestMutationCommands_Lifecycle(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake")
	app, _ := newTestApp(t, fake, nil, testScopes)

	output, err := execute(t, NewCreateCommand(app), "", "API_KEY", "v1")
	require.NoError(t, err)
	assert.Equal(t, "Created API_KEY\n", output)

	output, err = execute(t, NewGetCommand(app), "", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "v1", output)

	output, err = execute(t, NewUpdateCommand(app), "v2\n", "API_KEY", "-")
	require.NoError(t, err)
	assert.Equal(t, "Updated API_KEY\n", output)

	output, err = execute(t, NewGetCommand(app), "", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "v2", output, "update drops the cached value")

	output, err = execute(t, NewListCommand(app), "")
	require.NoError(t, err)
	testutil.AssertLinesContain(t, output, []string{"NAME", "API_KEY"})
	assert.NotContains(t, output, "v2")

	output, err = execute(t, NewDeleteCommand(app), "", "API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "Deleted API_KEY\n", output)

	output, err = execute(t, NewListCommand(app), "")
	require.NoError(t, err)
	assert.Equal(t, "No secrets found\n", output)
}

func TestMutationCommands_TargetFlags(t *testing.T) {
	t.Parallel()

	fake := fakes.NewFakeProviderClient("fake")
	app, _ := newTestApp(t, fake, nil, testScopes)

	_, err := execute(t, NewCreateCommand(app), "", "TOKEN", "t", "--project", "proj-b", "--path", "/svc")
	require.NoError(t, err)

	output, err := execute(t, NewListCommand(app), "", "--project", "proj-b", "--path", "svc", "--json")
	require.NoError(t, err)

	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(output), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "TOKEN", entries[0]["name"])
	assert.Equal(t, "1", entries[0]["version"])

	output, err = execute(t, NewListCommand(app), "")
	require.NoError(t, err)
	assert.Equal(t, "No secrets found\n", output, "default target is the first scope at /")
}

func TestMutationCommands_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no provider", func(t *testing.T) {
		t.Parallel()
		app, _ := newTestApp(t, nil, nil, testScopes)

		_, err := execute(t, NewDeleteCommand(app), "", "KEY")
		var unavailable *dserrors.ProviderUnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Contains(t, dserrors.SimplifyError(err).Error(), "secretchain doctor")
	})

	t.Run("no project", func(t *testing.T) {
		t.Parallel()
		app, _ := newTestApp(t, fakes.NewFakeProviderClient("fake"), nil, nil)

		_, err := execute(t, NewCreateCommand(app), "", "KEY", "v")
		var cfgErr dserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, cfgErr.Suggestion, "INFISICAL_PROJECT_ID")
	})

	t.Run("empty stdin", func(t *testing.T) {
		t.Parallel()
		fake := fakes.NewFakeProviderClient("fake")
		app, _ := newTestApp(t, fake, nil, testScopes)

		_, err := execute(t, NewCreateCommand(app), "", "KEY", "-")
		testutil.AssertErrorContains(t, err, "No value on stdin")
		assert.Zero(t, fake.CallCount("CreateSecret"))
	})

	t.Run("wrong arity", func(t *testing.T) {
		t.Parallel()
		app, _ := newTestApp(t, nil, nil, nil)

		_, err := execute(t, NewUpdateCommand(app), "", "ONLY_KEY")
		assert.Error(t, err)
	})
}

func TestReadValue(t *testing.T) {
	t.Parallel()

	value, err := readValue(strings.NewReader("ignored"), "literal")
	require.NoError(t, err)
	assert.Equal(t, "literal", value)

	value, err = readValue(strings.NewReader("from stdin\r\nsecond line"), "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", value)

	value, err = readValue(strings.NewReader("no newline"), "-")
	require.NoError(t, err)
	assert.Equal(t, "no newline", value)
}
