package main

import "github.com/peterh/liner"

// linerPrompter implements hostconv.Prompter over a terminal line editor,
// standing in for the real conversation function a PAM-hosting process
// would supply.
type linerPrompter struct {
	state *liner.State
}

func newLinerPrompter() *linerPrompter {
	return &linerPrompter{state: liner.NewLiner()}
}

func (p *linerPrompter) Close() error {
	return p.state.Close()
}

// PromptEchoOff issues text and reads one line with input echo disabled,
// matching the PAM conversation's echo-off requirement for a verification
// code (spec §6).
func (p *linerPrompter) PromptEchoOff(text string) (string, error) {
	return p.state.PasswordPrompt(text)
}
