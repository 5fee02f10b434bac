// Package panel draws the chat widget in a terminal: a toggle button with its
// teaser bubble while closed, and the chat panel while open.
package panel

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"chatwidget/pkg/widget"
)

// Run drives ctrl until the user quits or ctx ends. The caller owns the
// controller and shuts it down afterwards.
func Run(ctx context.Context, ctrl *widget.Controller) error {
	model := newModel(ctx, ctrl)
	defer model.unsubscribe()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	fmt.Println(renderGoodbyeBanner(model.theme, ctrl.Config().BotName))
	return nil
}

func renderGoodbyeBanner(t theme, botName string) string {
	return t.goodbye.Render(fmt.Sprintf("👋 %s signing off", botName))
}
