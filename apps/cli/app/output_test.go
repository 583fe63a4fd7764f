package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestPrinterTable(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	p := Printer{Out: &buf}
	require.NoError(t, p.Print(nil, []string{"NOME", "EMAIL"}, [][]string{
		{"Ana", "ana@igreja.org"},
		{"Bernardo", "b@igreja.org"},
	}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "NOME"))
	require.Equal(t, strings.Index(lines[0], "EMAIL"), strings.Index(lines[1], "ana@"), "columns are aligned")
}

func TestPrinterEmptyTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Printer{Out: &buf, Format: OutputTable}.Print(nil, []string{"NOME"}, nil))
	require.Equal(t, "Nenhum registro encontrado.\n", buf.String())
}

func TestPrinterYAML(t *testing.T) {
	t.Parallel()

	type doc struct {
		Name string `yaml:"name"`
	}
	var buf bytes.Buffer
	require.NoError(t, Printer{Out: &buf, Format: OutputYAML}.Print([]doc{{Name: "Ana"}}, nil, nil))
	require.Equal(t, "- name: Ana\n", buf.String())
}

func TestPrinterUnknownFormat(t *testing.T) {
	t.Parallel()

	err := Printer{Out: &bytes.Buffer{}, Format: "xml"}.Print(nil, nil, nil)
	require.ErrorContains(t, err, "unknown output format")
}

func TestNewPrinterDefaultsWithoutOutputFlag(t *testing.T) {
	t.Parallel()

	p := NewPrinter(&cobra.Command{})
	require.Equal(t, OutputTable, p.Format)
}

func TestReported(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")
	require.Nil(t, Reported(nil))
	require.True(t, IsReported(Reported(base)))
	require.ErrorIs(t, Reported(base), base)
	require.False(t, IsReported(base))
}

func TestParseID(t *testing.T) {
	t.Parallel()

	_, err := ParseID("not-a-uuid")
	require.ErrorContains(t, err, "invalid id")

	id, err := ParseID("6f1c1f7e-2a43-4d0e-9c55-0f2a8a1b7c11")
	require.NoError(t, err)
	require.Equal(t, "6f1c1f7e-2a43-4d0e-9c55-0f2a8a1b7c11", id.String())
}

func TestChanged(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	var name, phone string
	cmd.Flags().StringVar(&name, "name", "", "")
	cmd.Flags().StringVar(&phone, "phone", "", "")
	require.NoError(t, cmd.Flags().Parse([]string{"--name", "Ana"}))

	require.Equal(t, "Ana", *Changed(cmd, "name", name))
	require.Nil(t, Changed(cmd, "phone", phone))
}

func TestOpenImage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	png := filepath.Join(dir, "logo.png")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG"), 0o600))

	f, contentType, err := OpenImage(png)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	require.Equal(t, "image/png", contentType)

	_, _, err = OpenImage(filepath.Join(dir, "logo.unknownext"))
	require.ErrorContains(t, err, "unknown image type")

	_, _, err = OpenImage(filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)
}
