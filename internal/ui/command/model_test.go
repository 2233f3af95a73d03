package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line    string
		want    Command
		wantErr bool
	}{
		{line: "refresh", want: Command{Name: Refresh}},
		{line: "  READ-ALL ", want: Command{Name: ReadAll}},
		{line: "q", want: Command{Name: Quit}},
		{line: "open n42", want: Command{Name: Open, Arg: "n42"}},
		{line: "delete n1", want: Command{Name: Delete, Arg: "n1"}},
		{line: "open", wantErr: true},
		{line: "refresh now", wantErr: true},
		{line: "poke", wantErr: true},
		{line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnknownCommandIsSentinel(t *testing.T) {
	_, err := Parse("poke")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func typeLine(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func TestEnterRunsCommand(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m = typeLine(m, "read n7")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, RunMsg{Command: Command{Name: Read, Arg: "n7"}}, cmd())
	assert.Empty(t, m.input.Value())
}

func TestEnterWithInvalidLineShowsError(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m = typeLine(m, "poke")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "unknown command")
}

func TestEscCancels(t *testing.T) {
	m := New(80, 24)
	m.Focus()
	m = typeLine(m, "ref")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CancelMsg{}, cmd())
}
