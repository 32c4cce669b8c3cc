package commands

// SetArgs sets the arguments for the command, for tests.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}
