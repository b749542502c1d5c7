package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

// keyModel waits for a single key press
type keyModel struct {
	again   bool
	pressed bool
}

func (m keyModel) Init() tea.Cmd {
	return nil
}

func (m keyModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	m.pressed = true
	switch key.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.again = false
	default:
		m.again = true
	}
	return m, tea.Quit
}

func (m keyModel) View() string {
	if m.pressed {
		return ""
	}
	return helpStyle.Render("Press any key to run again, Esc to exit") + "\n"
}

// Raw key bytes that end the interactive loop
const (
	keyEsc   = 0x1b
	keyCtrlC = 0x03
)

// waitForKey blocks until a key is pressed and reports whether the user asked
// for another batch. Keys already buffered by the prompter, and every key on a
// non-terminal input, are read from buffered; only a terminal with nothing
// pending goes through bubbletea.
func waitForKey(buffered *bufio.Reader, in io.Reader, out io.Writer) (bool, error) {
	if buffered.Buffered() == 0 && isInteractive(in) {
		p := tea.NewProgram(keyModel{}, tea.WithInput(in), tea.WithOutput(out))
		final, err := p.Run()
		if err != nil {
			return false, fmt.Errorf("error waiting for key press: %w", err)
		}
		return final.(keyModel).again, nil
	}

	fmt.Fprint(out, keyModel{}.View())
	b, err := buffered.ReadByte()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error waiting for key press: %w", err)
	}
	return b != keyEsc && b != keyCtrlC, nil
}
