package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_Without_Command_Prints_Usage(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	req.NoError(run(nil, &out))
	req.Contains(out.String(), "usage: admin <command>")
}

func TestRun_Rejects_Bad_Arguments(t *testing.T) {
	req := require.New(t)
	t.Setenv("ADMIN_COLOURS", "false")
	var out bytes.Buffer

	// The client connects lazily, nothing is dialed before these fail
	err := run([]string{"dance"}, &out)
	req.ErrorContains(err, `unknown command "dance"`)

	err = run([]string{"user-rename", "alice"}, &out)
	req.ErrorContains(err, "expects the current and the new nickname")

	err = run([]string{"message-delete"}, &out)
	req.ErrorContains(err, "expects a message id")
}
