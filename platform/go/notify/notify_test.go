package notify

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestConsoleWritesToSeparateStreams(t *testing.T) {
	color.NoColor = true

	var out, errOut bytes.Buffer
	c := NewConsoleTo(&out, &errOut)

	c.Success("Membro criado")
	c.Error("Erro ao carregar membros")

	require.Equal(t, "✔ Membro criado\n", out.String())
	require.Equal(t, "✖ Erro ao carregar membros\n", errOut.String())
}

func TestRecorderCopies(t *testing.T) {
	t.Parallel()

	r := &Recorder{}
	r.Success("a")
	r.Error("b")

	got := r.Successes()
	got[0] = "changed"

	require.Equal(t, []string{"a"}, r.Successes())
	require.Equal(t, []string{"b"}, r.Errors())
}
